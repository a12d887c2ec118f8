package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileGroup is a set of path patterns sharing the same static fields
type FileGroup struct {
	Paths  []string          `yaml:"paths"`
	Fields map[string]string `yaml:"fields"`
}

// FilesConfig is the document listing the files to forward
type FilesConfig struct {
	Files []FileGroup `yaml:"files"`
}

// LoadFileGroups loads the file groups document (YAML or JSON)
func LoadFileGroups(path string) ([]FileGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read files config: %w", err)
	}
	return ParseFileGroups(data)
}

// ParseFileGroups parses a file groups document
func ParseFileGroups(data []byte) ([]FileGroup, error) {
	var fc FilesConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse files config: %w", err)
	}

	if len(fc.Files) == 0 {
		return nil, fmt.Errorf("files config lists no file groups")
	}

	for i := range fc.Files {
		group := &fc.Files[i]
		paths := make([]string, 0, len(group.Paths))
		for _, p := range group.Paths {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("file group %d has no paths", i)
		}
		group.Paths = paths
	}

	return fc.Files, nil
}
