package domain

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// Names of the fields every Event carries
const (
	FieldFile   = "file"
	FieldOffset = "offset"
	FieldLine   = "line"
	FieldHost   = "host"
)

// Event is a single line read from a log file, ready to be shipped
type Event struct {
	Fields map[string]string // Static fields configured for the source file
	File   string            // Canonical path of the source file
	Offset int64             // Byte position right after the line terminator
	Line   string            // Line content without terminator
	Host   string            // Host the forwarder runs on
}

// isReserved reports whether key collides with one of the fixed fields
func isReserved(key string) bool {
	switch key {
	case FieldFile, FieldOffset, FieldLine, FieldHost:
		return true
	}
	return false
}

// MarshalJSON encodes the event as one object with a stable key order:
// static fields sorted by name, then file, offset, line and host.
// Invalid UTF-8 in any value is replaced with U+FFFD.
func (e Event) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if isReserved(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, k := range keys {
		if err := writeStringField(&buf, k, e.Fields[k]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	if err := writeStringField(&buf, FieldFile, e.File); err != nil {
		return nil, err
	}
	buf.WriteString(`,"` + FieldOffset + `":`)
	buf.WriteString(strconv.FormatInt(e.Offset, 10))
	buf.WriteByte(',')
	if err := writeStringField(&buf, FieldLine, e.Line); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeStringField(&buf, FieldHost, e.Host); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeStringField(buf *bytes.Buffer, key, value string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
