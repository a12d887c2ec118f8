package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/SteelMorgan/log-forwarder/internal/offset"
)

const usage = `Usage: offsets <command> [args]

Commands:
  list                  print every stored offset
  delete <path>         forget the offset of a file (it is read from the start)
  set <path> <offset>   move the offset of a file

The database is taken from OFFSET_DB_PATH (default forwarder.db).
Stop the forwarder first: the database is locked while it runs.`

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	dbPath := os.Getenv("OFFSET_DB_PATH")
	if dbPath == "" {
		dbPath = "forwarder.db"
	}

	if err := run(context.Background(), dbPath, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "list":
		if len(args) != 1 {
			return fmt.Errorf("list takes no arguments")
		}
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: offsets delete <path>")
		}
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: offsets set <path> <offset>")
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	store, err := offset.NewBoltDBStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "list":
		return list(ctx, store, out)
	case "delete":
		if err := store.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", args[1])
		return nil
	default:
		off, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil || off < 0 {
			return fmt.Errorf("invalid offset %q", args[2])
		}
		if err := store.Set(ctx, args[1], off); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%d\n", args[1], off)
		return nil
	}
}

func list(ctx context.Context, store offset.OffsetStore, out io.Writer) error {
	offsets, err := store.List(ctx)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(offsets))
	for path := range offsets {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		fmt.Fprintf(out, "%s\t%d\n", path, offsets[path])
	}
	return nil
}
