package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

var errUsage = errors.New("usage")

func (a *App) Add(ctx context.Context, args []string) error {
	title := strings.Join(args, " ")
	if title == "" {
		var err error
		if title, err = readLine(a.reader, a.out, "Title"); err != nil {
			return err
		}
	}
	td, err := a.todoService.Add(ctx, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", shortID(td.ID))
	return nil
}

func (a *App) Toggle(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: toggle <id>", errUsage)
	}
	id, err := a.todoService.Resolve(args[0])
	if err != nil {
		return err
	}
	td, err := a.todoService.Toggle(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n", checkbox(td.Completed), td.Title)
	return nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: edit <id> <title>", errUsage)
	}
	id, err := a.todoService.Resolve(args[0])
	if err != nil {
		return err
	}
	if _, err := a.todoService.Rename(ctx, id, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated")
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <id>", errUsage)
	}
	id, err := a.todoService.Resolve(args[0])
	if err != nil {
		return err
	}
	if err := a.todoService.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// List prints live todos newest first. Todos the server has not confirmed
// yet are marked with an asterisk.
func (a *App) List(ctx context.Context) error {
	todos := a.todoService.List(ctx)
	if len(todos) == 0 {
		fmt.Fprintln(a.out, "No todos")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, td := range todos {
		created := "*"
		if td.Synced() {
			created = td.CreatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(td.ID), checkbox(td.Completed), td.Title, created)
	}
	return w.Flush()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
