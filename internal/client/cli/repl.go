package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

const helpText = `Available commands:
  info                          summary of the open message
  open [path|uid]               open a .eml file or fetch an IMAP message
  login [token] | logout        sign in with an access token / sign out
  orgs | org <n|id>             list organizations / select one
  type case|client              destination kind
  recent | find <text>          list recent destinations / filter them
  pick <n|id>                   choose a destination
  tree | folder <n|root>        show folders / choose the upload folder
  include eml|attachments on|off
  prepare                       extract the bundle and create download files
  export eml|attachments        extract single parts for download
  upload [as <name>]            upload the selection (optionally renaming the .eml)
  status                        show the panel state
  exit | quit`

// errorText renders err as a status line, with a hint when the document
// service could not be reached.
func errorText(err error) string {
	text := common.StatusText(err)
	if errors.Is(err, client.ErrUnavailable) {
		text += " (document service unreachable, check -dsn)"
	}
	return text
}

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Sync(ctx context.Context) error
	Info(ctx context.Context) error
	Open(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	Orgs(ctx context.Context) error
	Org(ctx context.Context, args []string) error
	Type(ctx context.Context, args []string) error
	Recent(ctx context.Context) error
	Find(ctx context.Context, args []string) error
	Pick(ctx context.Context, args []string) error
	Tree(ctx context.Context) error
	Folder(ctx context.Context, args []string) error
	Include(ctx context.Context, args []string) error
	Prepare(ctx context.Context) error
	Export(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Status(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the ledgermail panel.
//
// It reads a line from the provided scanner, parses the first token as the
// command and dispatches to methods on 'a' with the remaining tokens.
// Unknown commands are reported back to the user. The loop exits on scanner
// EOF or when the user types "exit" or "quit".
//
// Before each command the session is synced, so a token that expired while
// the prompt waited is observed. A sync or handler error is printed as a
// status line ("Error: ...") and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("lm %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if err := a.Sync(ctx); err != nil {
			printlnFn(errorText(err))
		}

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "info":
			err = a.Info(ctx)
		case "open":
			err = a.Open(ctx, args)
		case "login":
			err = a.Login(ctx, args)
		case "logout":
			err = a.Logout(ctx)
		case "orgs":
			err = a.Orgs(ctx)
		case "org":
			err = a.Org(ctx, args)
		case "type":
			err = a.Type(ctx, args)
		case "recent":
			err = a.Recent(ctx)
		case "find":
			err = a.Find(ctx, args)
		case "pick":
			err = a.Pick(ctx, args)
		case "tree":
			err = a.Tree(ctx)
		case "folder":
			err = a.Folder(ctx, args)
		case "include":
			err = a.Include(ctx, args)
		case "prepare":
			err = a.Prepare(ctx)
		case "export":
			err = a.Export(ctx, args)
		case "upload":
			err = a.Upload(ctx, args)
		case "status":
			err = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn(errorText(err))
		}
	}
}
