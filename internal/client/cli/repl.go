package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type command func(ctx context.Context, args []string) error

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error

	ShowLists(ctx context.Context, args []string) error
	ShowList(ctx context.Context, args []string) error
	ShowInbox(ctx context.Context, args []string) error
	NewList(ctx context.Context, args []string) error
	EditList(ctx context.Context, args []string) error
	RemoveList(ctx context.Context, args []string) error
	CloneList(ctx context.Context, args []string) error
	Cover(ctx context.Context, args []string) error

	AddItem(ctx context.Context, args []string) error
	SetStatus(ctx context.Context, args []string) error
	MoveItem(ctx context.Context, args []string) error
	RemoveItem(ctx context.Context, args []string) error
	Activity(ctx context.Context, args []string) error

	Sync(ctx context.Context, args []string) error
	Refresh(ctx context.Context, args []string) error
	Pending(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: register, login, exit"
	helpLoggedIn  = `Available commands:
  lists                          show your lists
  list <list>                    show a list and its items
  inbox                          show the inbox list
  newlist [title]                create a list
  editlist <list>                edit a list
  rmlist <list>                  delete a list
  clone <list>                   copy a list into a new private one
  cover <list> <file>            upload a list cover image
  add [list]                     add an item, to the inbox by default
  status <item> <saved|started|done>
  move <item> <list>             move an item to another list
  rmitem <item>                  delete an item
  activity [limit]               recently completed items
  sync                           push queued changes and refresh
  refresh                        pull from the server
  pending                        queued change count
  export [file]                  export everything as JSON
  logout, exit
Ids may be shortened to any unique prefix. '*' marks changes not synced yet.`
)

// runREPL starts a simple read–eval–print loop for the whattodo CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and passes the rest as arguments to the matching method on 'a'.
// Unknown commands are reported back to the user. The loop exits on scanner
// EOF or when the user types "exit" or "quit".
//
// Library commands need a session; without one the user is asked to log in.
// Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	public := map[string]command{
		"register": a.Register,
		"login":    a.Login,
	}
	private := map[string]command{
		"logout":   a.Logout,
		"lists":    a.ShowLists,
		"l":        a.ShowLists,
		"list":     a.ShowList,
		"inbox":    a.ShowInbox,
		"newlist":  a.NewList,
		"editlist": a.EditList,
		"rmlist":   a.RemoveList,
		"clone":    a.CloneList,
		"cover":    a.Cover,
		"add":      a.AddItem,
		"status":   a.SetStatus,
		"move":     a.MoveItem,
		"rmitem":   a.RemoveItem,
		"activity": a.Activity,
		"sync":     a.Sync,
		"refresh":  a.Refresh,
		"pending":  a.Pending,
		"export":   a.Export,
	}

	for {
		printlnFn(fmt.Sprintf("wtd %s> ", statusFn()))
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
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		fn, ok := public[cmd]
		if !ok {
			if fn, ok = private[cmd]; ok && !a.isLoggedIn() {
				printlnFn(errNotLoggedIn.Error())
				continue
			}
		}
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if err := fn(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}
