package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/common"
)

type fakeExec struct {
	calls   []string
	args    map[string][]string
	errs    map[string]error
	syncs   int
	syncErr error
}

func (f *fakeExec) Sync(ctx context.Context) error {
	f.syncs++
	return f.syncErr
}

func (f *fakeExec) rec(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return f.errs[name]
}

func (f *fakeExec) Info(ctx context.Context) error                { return f.rec("info", nil) }
func (f *fakeExec) Open(ctx context.Context, a []string) error    { return f.rec("open", a) }
func (f *fakeExec) Login(ctx context.Context, a []string) error   { return f.rec("login", a) }
func (f *fakeExec) Logout(ctx context.Context) error              { return f.rec("logout", nil) }
func (f *fakeExec) Orgs(ctx context.Context) error                { return f.rec("orgs", nil) }
func (f *fakeExec) Org(ctx context.Context, a []string) error     { return f.rec("org", a) }
func (f *fakeExec) Type(ctx context.Context, a []string) error    { return f.rec("type", a) }
func (f *fakeExec) Recent(ctx context.Context) error              { return f.rec("recent", nil) }
func (f *fakeExec) Find(ctx context.Context, a []string) error    { return f.rec("find", a) }
func (f *fakeExec) Pick(ctx context.Context, a []string) error    { return f.rec("pick", a) }
func (f *fakeExec) Tree(ctx context.Context) error                { return f.rec("tree", nil) }
func (f *fakeExec) Folder(ctx context.Context, a []string) error  { return f.rec("folder", a) }
func (f *fakeExec) Include(ctx context.Context, a []string) error { return f.rec("include", a) }
func (f *fakeExec) Prepare(ctx context.Context) error             { return f.rec("prepare", nil) }
func (f *fakeExec) Export(ctx context.Context, a []string) error  { return f.rec("export", a) }
func (f *fakeExec) Upload(ctx context.Context, a []string) error  { return f.rec("upload", a) }
func (f *fakeExec) Status(ctx context.Context) error              { return f.rec("status", nil) }

// capturePrint swaps printlnFn and returns the printed lines.
func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrint(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"open /tmp/a b.eml",
		"login tok",
		"org 2",
		"type client",
		"recent",
		"find acme law",
		"pick 1",
		"",
		"tree",
		"folder root",
		"include eml off",
		"prepare",
		"export attachments",
		"upload as Final letter.eml",
		"status",
		"info",
		"orgs",
		"logout",
		"exit",
		"recent",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "(status)" }, bufio.NewScanner(input))

	assert.Equal(t, []string{
		"open", "login", "org", "type", "recent", "find", "pick", "tree", "folder",
		"include", "prepare", "export", "upload", "status", "info", "orgs", "logout",
	}, exec.calls, "nothing runs after exit")
	assert.Equal(t, []string{"/tmp/a", "b.eml"}, exec.args["open"])
	assert.Equal(t, []string{"acme", "law"}, exec.args["find"])
	assert.Equal(t, []string{"as", "Final", "letter.eml"}, exec.args["upload"])
	assert.Equal(t, []string{"eml", "off"}, exec.args["include"])
}

func TestRunREPL_PrintsErrorsAndUnknown(t *testing.T) {
	lines := capturePrint(t)

	exec := &fakeExec{errs: map[string]error{"recent": errors.New("Select an organization first.")}}
	input := strings.NewReader("recent\nfoobar\nquit\n")
	runREPL(context.Background(), exec, func() string { return "(signed out)" }, bufio.NewScanner(input))

	require.Contains(t, *lines, "Error: Select an organization first.")
	require.Contains(t, *lines, "Unknown command: foobar")
	require.Contains(t, *lines, "lm (signed out)> ")
	require.Equal(t, "Bye!", (*lines)[len(*lines)-1])
}

func TestRunREPL_EOFStops(t *testing.T) {
	capturePrint(t)
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("status")))
	assert.Equal(t, []string{"status"}, exec.calls)
}

func TestRunREPL_SyncsBeforeEachCommand(t *testing.T) {
	lines := capturePrint(t)
	exec := &fakeExec{syncErr: errors.New("Please log in first.")}

	input := strings.NewReader("status\n\nrecent\nquit\n")
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(input))

	assert.Equal(t, 3, exec.syncs, "blank lines do not sync")
	assert.Equal(t, []string{"status", "recent"}, exec.calls, "a sync failure does not block the command")
	assert.Contains(t, *lines, "Error: Please log in first.")
}

func TestErrorText(t *testing.T) {
	plain := common.NewError(common.KindRemoteCallFailed, "", errors.New("relation \"cases\" does not exist"))
	assert.Equal(t, `Error: relation "cases" does not exist`, errorText(plain))

	down := common.NewError(common.KindRemoteCallFailed, "", fmt.Errorf("%w (%w)", errors.New("dial tcp: connection refused"), client.ErrUnavailable))
	text := errorText(down)
	assert.True(t, strings.HasPrefix(text, "Error: dial tcp: connection refused"), text)
	assert.True(t, strings.HasSuffix(text, "(document service unreachable, check -dsn)"), text)
}

func TestRunREPL_Help(t *testing.T) {
	lines := capturePrint(t)
	runREPL(context.Background(), &fakeExec{}, func() string { return "" }, bufio.NewScanner(strings.NewReader("help\n")))
	require.Contains(t, strings.Join(*lines, "\n"), "upload [as <name>]")
}
