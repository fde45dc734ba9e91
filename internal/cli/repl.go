package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs. The real App type
// satisfies it; tests can provide a lightweight stub. Every command gets the
// words following its name.
type execIface interface {
	Collections(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Get(ctx context.Context, args []string) error
	Find(ctx context.Context, args []string) error
	Insert(ctx context.Context, args []string) error
	Update(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	DeleteMany(ctx context.Context, args []string) error
	Drop(ctx context.Context, args []string) error
	Stats(ctx context.Context, args []string) error
	Clear(ctx context.Context, args []string) error
	Backup(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  collections                      list collection names
  list <c>                         show all records of a collection
  get <c> <id>                     show one record
  find <c> k=v...                  show records matching every k=v
  insert <c> k=v...                add a record
  update <c> <id> k=v...           change fields of a record
  delete <c> <id>                  remove a record
  deletemany <c> k=v...            remove every matching record
  drop <c>                         remove a collection
  stats <c>                        record count and size
  clear                            remove everything
  backup | restore                 copy collections to or from the backup location
  exit | quit                      leave the program
Values are JSON when they parse as JSON (n=3, ok=true, tags=["a"]), strings otherwise.`

// runREPL reads a line from scanner, takes the first word as the command
// and dispatches to a. Errors from a command are printed and the loop goes
// on. The loop exits on scanner EOF, on "exit"/"quit", or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	commands := map[string]func(context.Context, []string) error{
		"collections": a.Collections,
		"list":        a.List,
		"l":           a.List,
		"get":         a.Get,
		"find":        a.Find,
		"insert":      a.Insert,
		"update":      a.Update,
		"delete":      a.Delete,
		"deletemany":  a.DeleteMany,
		"drop":        a.Drop,
		"stats":       a.Stats,
		"clear":       a.Clear,
		"backup":      a.Backup,
		"restore":     a.Restore,
	}

	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("kmdb %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		run, ok := commands[cmd]
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if err := run(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}
