package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/ledgermail/internal/client/config"
	"github.com/dmitrijs2005/ledgermail/internal/client/controller"
	"github.com/dmitrijs2005/ledgermail/internal/client/host"
	"github.com/dmitrijs2005/ledgermail/internal/client/host/imap"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/common"
)

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}

// reported prints the status line the controller set for the command; the
// error itself is already part of it.
func (a *App) reported(err error) error {
	if errors.Is(err, controller.ErrBusy) {
		return err
	}
	if s := a.ctrl.Status(); s != "" {
		printlnFn(s)
	}
	return nil
}

// index resolves a 1-based list position; ok is false for anything else.
func index(arg string, n int) (int, bool) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// Sync feeds the current session state to the controller.
func (a *App) Sync(ctx context.Context) error {
	return a.ctrl.SyncSession(ctx)
}

func (a *App) Info(ctx context.Context) error {
	item := a.mailbox.Item()
	if item == nil {
		return common.NewError(common.KindHostUnavailable, "No mailbox item available. Open a mail message and try again.", nil)
	}

	printlnFn("Subject:  ", item.Subject())
	printlnFn("From:     ", item.From())
	printlnFn("To:       ", strings.Join(item.To(), ", "))
	printlnFn("Cc:       ", strings.Join(item.Cc(), ", "))
	if d := item.DateTimeCreated(); !d.IsZero() {
		printlnFn("Date:     ", d.Format("2006-01-02 15:04"))
	}
	printlnFn("Item id:  ", item.ItemID())
	printlnFn("Item type:", item.ItemType())

	atts := item.Attachments()
	printlnFn(fmt.Sprintf("Attachments: %d", len(atts)))
	for i, at := range atts {
		printlnFn(fmt.Sprintf("  %d. %s (%s, %d bytes)", i+1, at.Name, at.ContentType, at.Size))
	}
	return nil
}

// Open makes a message current: a .eml path for the eml source, a UID for
// the imap source. Without arguments the configured one is used.
func (a *App) Open(ctx context.Context, args []string) error {
	var (
		msg *host.Message
		err error
	)
	if a.cfg.Source == config.SourceIMAP {
		msg, err = a.openIMAP(ctx, args)
	} else {
		path := a.cfg.EMLPath
		if len(args) > 0 {
			path = strings.Join(args, " ")
		}
		if path == "" {
			return usage("open <path to .eml>")
		}
		msg, err = host.OpenFile(path, a.cfg.SliceSize)
	}
	if err != nil {
		return err
	}

	a.mailbox.Open(msg)
	a.ctrl.ItemChanged(ctx)
	printlnFn(fmt.Sprintf("Opened: %q, %d attachment(s)", msg.Subject(), len(msg.Attachments())))
	return nil
}

func (a *App) openIMAP(ctx context.Context, args []string) (*host.Message, error) {
	uid := a.cfg.IMAP.UID
	if len(args) > 0 {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil || n == 0 {
			return nil, usage("open <message uid>")
		}
		uid = uint32(n)
	}

	password, err := a.imapPassword()
	if err != nil {
		return nil, err
	}

	loader := imap.NewLoader(imap.Config{
		Host:     a.cfg.IMAP.Host,
		Port:     a.cfg.IMAP.Port,
		Username: a.cfg.IMAP.Username,
		Password: password,
		TLS:      a.cfg.IMAP.TLS,
		Mailbox:  a.cfg.IMAP.Mailbox,
		UID:      uid,
	}, a.logger)
	return loader.Load(ctx, a.cfg.SliceSize)
}

// imapPassword takes the password from config, then the keyring, then asks
// for it and remembers the answer in the keyring.
func (a *App) imapPassword() (string, error) {
	if a.cfg.IMAP.Password != "" {
		return a.cfg.IMAP.Password, nil
	}

	pw, err := a.creds.Get(common.IMAPPasswordCredential)
	switch {
	case err == nil && pw != "":
		return pw, nil
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return "", err
	}

	raw, err := GetPassword("IMAP password for "+a.cfg.IMAP.Username, a.out)
	if err != nil {
		return "", err
	}
	defer wipe(raw)

	pw = string(raw)
	if err := a.creds.Set(common.IMAPPasswordCredential, pw); err != nil {
		a.logger.Warn(context.Background(), "failed to remember IMAP password", "error", err)
	}
	return pw, nil
}

func (a *App) Login(ctx context.Context, args []string) error {
	token := strings.Join(args, "")
	if token == "" {
		var err error
		if token, err = GetSimpleText(a.reader, "Access token", a.out); err != nil {
			return err
		}
	}

	st, err := a.sessions.Login(token)
	if err != nil {
		return err
	}
	printlnFn("✅ Logged in as", st.Email)

	if err := a.ctrl.SyncSession(ctx); err != nil {
		return err
	}
	a.printOrgs()
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if _, err := a.sessions.Logout(); err != nil {
		return err
	}
	a.shown, a.folders = nil, nil
	if err := a.ctrl.SyncSession(ctx); err != nil {
		return err
	}
	printlnFn("Logged out.")
	return nil
}

func (a *App) Orgs(ctx context.Context) error {
	if err := a.ctrl.ReloadOrgs(ctx); err != nil {
		return err
	}
	a.printOrgs()
	return nil
}

func (a *App) printOrgs() {
	orgs := a.orgs.Orgs()
	if len(orgs) == 0 {
		printlnFn("No organizations found.")
		return
	}
	selected := a.orgs.Selected().ID
	for i, o := range orgs {
		mark := " "
		if o.ID == selected {
			mark = "*"
		}
		printlnFn(fmt.Sprintf("%s %d. %s (%s)", mark, i+1, o.Name, common.ShortID(o.ID)))
	}
}

func (a *App) Org(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("org <n|id>")
	}
	id := args[0]
	orgs := a.orgs.Orgs()
	if i, ok := index(id, len(orgs)); ok {
		id = orgs[i].ID
	}

	if err := a.ctrl.SelectOrg(ctx, id); err != nil {
		return err
	}
	a.shown, a.folders = nil, nil
	printlnFn("Organization:", a.orgs.Selected().Name)
	return nil
}

func (a *App) Type(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("type case|client")
	}
	kind, ok := models.ParseScopeKind(args[0])
	if !ok {
		return usage("type case|client")
	}
	if a.ctrl.Snapshot().Kind != kind {
		a.shown, a.folders = nil, nil
	}
	a.ctrl.SetKind(ctx, kind)
	return nil
}

func (a *App) Recent(ctx context.Context) error {
	res, err := a.ctrl.Recent(ctx)
	if err != nil {
		return err
	}
	kind := "cases"
	if a.ctrl.Snapshot().Kind == models.ScopeClient {
		kind = "clients"
	}
	printlnFn(fmt.Sprintf("Loaded %d recent %s.", len(res), kind))
	a.printResults(res)
	return nil
}

func (a *App) Find(ctx context.Context, args []string) error {
	res := a.ctrl.Find(strings.Join(args, " "))
	a.printResults(res)
	return nil
}

func (a *App) printResults(res []models.SearchResult) {
	a.shown = res
	for i, r := range res {
		printlnFn(fmt.Sprintf("  %d. %s", i+1, r.Label))
	}
}

func (a *App) Pick(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("pick <n|id>")
	}
	id := args[0]
	if i, ok := index(id, len(a.shown)); ok {
		id = a.shown[i].ID
	}

	tree, err := a.ctrl.Pick(ctx, id)
	if err != nil {
		return err
	}
	if sel := a.ctrl.Snapshot().Selected; sel != nil {
		printlnFn("Destination:", sel.Label)
	}
	a.printTree(tree)
	return nil
}

func (a *App) Tree(ctx context.Context) error {
	tree, err := a.ctrl.RefreshTree(ctx)
	if err != nil {
		return err
	}
	a.printTree(tree)
	return nil
}

func (a *App) printTree(tree models.Tree) {
	a.folders = tree.Folders()
	if len(a.folders) == 0 {
		printlnFn("No folders: uploads go to the root.")
		return
	}

	var parent string
	if p := a.ctrl.Snapshot().ParentID; p != nil {
		parent = *p
	}
	mark := func(id string) string {
		if id == parent {
			return "*"
		}
		return " "
	}
	printlnFn(mark("") + " 0. (Root)")
	for i, f := range a.folders {
		printlnFn(fmt.Sprintf("%s %d. %s", mark(f.ID), i+1, f.Name))
	}
}

func (a *App) Folder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("folder <n|root>")
	}
	id := args[0]
	switch {
	case id == "root" || id == "0":
		id = ""
	default:
		if i, ok := index(id, len(a.folders)); ok {
			id = a.folders[i].ID
		}
	}
	return a.ctrl.SelectFolder(id)
}

func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "yes", "true", "1":
		return true, true
	case "off", "no", "false", "0":
		return false, true
	}
	return false, false
}

func (a *App) Include(ctx context.Context, args []string) error {
	const u = "include eml|attachments on|off"
	if len(args) != 2 {
		return usage(u)
	}
	on, ok := parseSwitch(args[1])
	if !ok {
		return usage(u)
	}
	switch args[0] {
	case "eml":
		a.ctrl.SetIncludeEML(on)
	case "attachments":
		a.ctrl.SetIncludeAttachments(on)
	default:
		return usage(u)
	}
	return nil
}

func (a *App) Prepare(ctx context.Context) error {
	if _, err := a.ctrl.Prepare(ctx); err != nil {
		return a.reported(err)
	}
	_ = a.reported(nil)
	a.printHandles(a.ctrl.Snapshot().Handles)
	return nil
}

func (a *App) printHandles(hs []controller.Handle) {
	for _, h := range hs {
		printlnFn(fmt.Sprintf("  %s -> %s", h.Name, h.Path))
	}
}

func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("export eml|attachments")
	}
	var err error
	switch args[0] {
	case "eml":
		_, err = a.ctrl.ExportEML(ctx)
	case "attachments":
		_, err = a.ctrl.ExportAttachments(ctx)
	default:
		return usage("export eml|attachments")
	}
	if err != nil {
		return a.reported(err)
	}
	_ = a.reported(nil)
	a.printHandles(a.ctrl.Snapshot().Handles)
	return nil
}

// Upload sends the selection; "upload as <name>" renames the .eml node.
func (a *App) Upload(ctx context.Context, args []string) error {
	var name string
	if len(args) > 0 {
		if args[0] != "as" || len(args) < 2 {
			return usage("upload [as <name>]")
		}
		name = strings.Join(args[1:], " ")
	}

	_, err := a.ctrl.Upload(ctx, name)
	return a.reported(err)
}

func (a *App) Status(ctx context.Context) error {
	v := a.ctrl.Snapshot()
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	st := a.sessions.State()
	switch {
	case st.Authenticated:
		printlnFn("Session:     signed in as", st.Email)
	case st.Known:
		printlnFn("Session:     signed out")
	default:
		printlnFn("Session:     unknown")
	}
	printlnFn("Org:        ", v.Org.Name)
	printlnFn("Type:       ", string(v.Kind))
	if v.Selected != nil {
		printlnFn("Destination:", v.Selected.Label)
	}
	folder := "(Root)"
	if v.ParentID != nil {
		folder = *v.ParentID
		for _, f := range v.Tree.Folders() {
			if f.ID == *v.ParentID {
				folder = f.Name
			}
		}
	}
	printlnFn("Folder:     ", folder)
	printlnFn(fmt.Sprintf("Include:     eml %s, attachments %s", onOff(v.IncludeEML), onOff(v.IncludeAttachments)))
	printlnFn("State:      ", string(v.State))
	if v.Status != "" {
		printlnFn("Status:     ", v.Status)
	}
	a.printHandles(v.Handles)
	return nil
}
