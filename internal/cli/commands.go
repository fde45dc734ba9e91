package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/krishimitra/internal/backup"
	"github.com/dmitrijs2005/krishimitra/internal/docstore"
	"github.com/dmitrijs2005/krishimitra/internal/models"
)

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	printlnFn(string(b))
	return nil
}

func (a *App) Collections(ctx context.Context, args []string) error {
	names, err := a.store.Collections(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		printlnFn("(no collections)")
		return nil
	}
	for _, n := range names {
		printlnFn(n)
	}
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("list <collection>")
	}
	c, err := a.store.FindAll(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(c)
}

func (a *App) Get(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("get <collection> <id>")
	}
	r, ok, err := a.store.FindByID(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("not found")
		return nil
	}
	return printJSON(r)
}

func (a *App) Find(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("find <collection> k=v...")
	}
	q, err := docstore.ParseQuery(args[1:])
	if err != nil {
		return err
	}
	c, err := a.store.Find(ctx, args[0], q)
	if err != nil {
		return err
	}
	return printJSON(c)
}

func (a *App) Insert(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("insert <collection> k=v...")
	}
	rec, err := docstore.ParseQuery(args[1:])
	if err != nil {
		return err
	}
	if err := models.Validate(args[0], rec); err != nil {
		return err
	}
	r, err := a.store.Insert(ctx, args[0], rec)
	if err != nil {
		return err
	}
	return printJSON(r)
}

func (a *App) Update(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("update <collection> <id> k=v...")
	}
	patch, err := docstore.ParseQuery(args[2:])
	if err != nil {
		return err
	}
	if err := models.Validate(args[0], patch); err != nil {
		return err
	}
	r, ok, err := a.store.Update(ctx, args[0], args[1], patch)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("not found")
		return nil
	}
	return printJSON(r)
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("delete <collection> <id>")
	}
	ok, err := a.store.Delete(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("not found")
		return nil
	}
	printlnFn("deleted", args[1])
	return nil
}

func (a *App) DeleteMany(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("deletemany <collection> k=v...")
	}
	q, err := docstore.ParseQuery(args[1:])
	if err != nil {
		return err
	}
	n, err := a.store.DeleteMany(ctx, args[0], q)
	if err != nil {
		return err
	}
	printlnFn("deleted", n, "records")
	return nil
}

func (a *App) Drop(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("drop <collection>")
	}
	if err := a.store.DropCollection(ctx, args[0]); err != nil {
		return err
	}
	printlnFn("dropped", args[0])
	return nil
}

func (a *App) Stats(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("stats <collection>")
	}
	st, err := a.store.Stats(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%s: %d records, %d bytes", args[0], st.Count, st.Size))
	return nil
}

func (a *App) Clear(ctx context.Context, args []string) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	printlnFn("cleared", a.store.Namespace())
	return nil
}

func (a *App) Backup(ctx context.Context, args []string) error {
	target, err := a.backupTarget(ctx)
	if err != nil {
		return err
	}
	names, err := backup.Backup(ctx, a.store, target)
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "backup written", "collections", len(names))
	printlnFn("backed up", len(names), "collections")
	return nil
}

func (a *App) Restore(ctx context.Context, args []string) error {
	source, err := a.backupTarget(ctx)
	if err != nil {
		return err
	}
	names, err := backup.Restore(ctx, a.store, source)
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "backup restored", "collections", len(names))
	printlnFn("restored", len(names), "collections")
	return nil
}
