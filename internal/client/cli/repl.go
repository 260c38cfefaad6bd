package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context, wipe bool) error
	Add(ctx context.Context, args []string) error
	Toggle(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Sync(ctx context.Context) error
	Resync(ctx context.Context) error
	Reset(ctx context.Context) error
	Status(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches them to a. The loop
// exits on scanner EOF, when ctx ends, or when the user types "exit" or
// "quit".
//
//	help                 show available commands
//	register | login     account management
//	logout [--wipe]      stop syncing; --wipe also forgets offline credentials
//	add <title>          add a todo
//	toggle <id>          flip completed
//	edit <id> <title>    rename
//	delete <id>          soft-delete
//	l | list             list todos, newest first
//	sync | resync        pull changes; resync starts from scratch
//	reset                discard local data
//	status               per-collection sync status
//
// Ids may be abbreviated to any unique prefix. Command errors are printed
// and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("gs %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: add, toggle, edit, delete, (l)ist, sync, resync, reset, status, logout, exit")
			} else {
				printlnFn("Available commands: register, login, add, toggle, edit, delete, (l)ist, status, exit")
			}
		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx, len(args) > 0 && args[0] == "--wipe")
		case "add":
			err = a.Add(ctx, args)
		case "toggle":
			err = a.Toggle(ctx, args)
		case "edit":
			err = a.Edit(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "l", "list":
			err = a.List(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "resync":
			err = a.Resync(ctx)
		case "reset":
			err = a.Reset(ctx)
		case "status":
			err = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
