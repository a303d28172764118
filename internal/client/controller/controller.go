package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/client/mail"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/client/services"
	"github.com/dmitrijs2005/ledgermail/internal/client/session"
	"github.com/dmitrijs2005/ledgermail/internal/common"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

// State is the command state of the panel.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateReady     State = "ready"
	StateUploading State = "uploading"
)

const DefaultClearDelay = 7 * time.Second

// Status texts.
const (
	msgPreparing        = "Preparing bundle…"
	msgPreparingFiles   = "Preparing files…"
	msgExportingEML     = "Exporting .eml…"
	msgExportingAtt     = "Exporting attachments…"
	msgLogInFirst       = "Please log in first."
	msgSelectOrgFirst   = "Select an organization first."
	msgSelectScopeFirst = "Select a case/client first."
	msgChooseAtLeastOne = "Choose at least one: Email (.eml) and/or Attachments."
	msgNothingToUpload  = "Nothing to upload: the message has no attachments."
)

// ErrBusy is returned while another command is in flight.
var ErrBusy = common.NewError(common.KindPreconditionUnmet, "another command is still running", nil)

// afterFunc schedules the auto-clear of a success status; swapped in tests.
var afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Auth reports the current session state. Reject marks the session as no
// longer trusted after the service refused it.
type Auth interface {
	State() session.State
	Reject()
}

// Options tunes the controller; zero values select the defaults.
type Options struct {
	ListLimit  int
	ClearDelay time.Duration
}

// View is a snapshot of the panel state.
type View struct {
	State              State
	Status             string
	Kind               models.ScopeKind
	Org                models.Org
	Results            []models.SearchResult
	Selected           *models.SearchResult
	Tree               models.Tree
	ParentID           *string
	IncludeEML         bool
	IncludeAttachments bool
	Prepared           *models.Bundle
	Handles            []Handle
}

// Controller enforces preconditions and runs one command at a time.
type Controller struct {
	extractor    mail.Extractor
	destinations services.DestinationService
	uploader     services.UploadService
	orgs         services.OrgService
	auth         Auth
	downloads    *Downloads
	logger       logging.Logger
	listLimit    int
	clearDelay   time.Duration

	mu        sync.Mutex
	state     State
	busy      bool
	status    string
	statusSeq int

	kind       models.ScopeKind
	results    []models.SearchResult
	selected   *models.SearchResult
	tree       models.Tree
	parentID   *string
	includeEML bool
	includeAtt bool

	prepared *models.Bundle
	handles  []Handle
}

func New(
	extractor mail.Extractor,
	destinations services.DestinationService,
	uploader services.UploadService,
	orgs services.OrgService,
	auth Auth,
	downloads *Downloads,
	logger logging.Logger,
	opts Options,
) *Controller {
	if opts.ListLimit <= 0 {
		opts.ListLimit = services.DefaultListLimit
	}
	if opts.ClearDelay <= 0 {
		opts.ClearDelay = DefaultClearDelay
	}
	return &Controller{
		extractor:    extractor,
		destinations: destinations,
		uploader:     uploader,
		orgs:         orgs,
		auth:         auth,
		downloads:    downloads,
		logger:       logger,
		listLimit:    opts.ListLimit,
		clearDelay:   opts.ClearDelay,
		state:        StateIdle,
		kind:         models.ScopeCase,
		includeEML:   true,
		includeAtt:   true,
	}
}

// Snapshot returns a copy of the panel state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:              c.state,
		Status:             c.status,
		Kind:               c.kind,
		Org:                c.orgs.Selected(),
		Results:            append([]models.SearchResult(nil), c.results...),
		Tree:               c.tree,
		ParentID:           c.parentID,
		IncludeEML:         c.includeEML,
		IncludeAttachments: c.includeAtt,
		Prepared:           c.prepared,
		Handles:            append([]Handle(nil), c.handles...),
	}
	if c.selected != nil {
		sel := *c.selected
		v.Selected = &sel
	}
	return v
}

// Status is the current status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) setStatus(s string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
	c.statusSeq++
	return c.statusSeq
}

func (c *Controller) fail(ctx context.Context, err error) error {
	c.setStatus(common.StatusText(c.checkAuth(ctx, err)))
	return err
}

// checkAuth drops the session identity when the service refuses the caller.
// Org memory stays until a sign-out is confirmed.
func (c *Controller) checkAuth(ctx context.Context, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		c.logger.Warn(ctx, "document service rejected the session", "error", err)
		c.auth.Reject()
	}
	return err
}

func (c *Controller) begin(st State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	c.state = st
	return nil
}

// end releases the command slot; the panel settles on Ready while a
// prepared bundle is held.
func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.state = StateIdle
	if c.prepared != nil {
		c.state = StateReady
	}
}

func precondition(msg string) error {
	return common.NewError(common.KindPreconditionUnmet, msg, nil)
}

// SyncSession feeds the session state to org memory. A changed org
// selection resets the destination.
func (c *Controller) SyncSession(ctx context.Context) error {
	before := c.orgs.Selected()
	err := c.orgs.Observe(ctx, c.auth.State())
	if c.orgs.Selected() != before {
		c.resetDestination(ctx)
	}
	return c.checkAuth(ctx, err)
}

// ReloadOrgs refreshes the org list and reconciles the selection.
func (c *Controller) ReloadOrgs(ctx context.Context) error {
	if !c.auth.State().Authenticated {
		return precondition(msgLogInFirst)
	}
	before := c.orgs.Selected()
	err := c.orgs.Reload(ctx)
	if c.orgs.Selected() != before {
		c.resetDestination(ctx)
	}
	return c.checkAuth(ctx, err)
}

// SelectOrg switches the organization.
func (c *Controller) SelectOrg(ctx context.Context, id string) error {
	before := c.orgs.Selected()
	if err := c.orgs.Select(ctx, id); err != nil {
		return err
	}
	if c.orgs.Selected() != before {
		c.resetDestination(ctx)
	}
	return nil
}

// SetKind switches between case and client destinations.
func (c *Controller) SetKind(ctx context.Context, kind models.ScopeKind) {
	c.mu.Lock()
	same := c.kind == kind
	c.kind = kind
	c.mu.Unlock()
	if !same {
		c.resetDestination(ctx)
	}
}

// resetDestination forgets the chosen destination and revokes handles.
func (c *Controller) resetDestination(ctx context.Context) {
	c.mu.Lock()
	c.results = nil
	c.selected = nil
	c.tree = models.Tree{}
	c.parentID = nil
	c.mu.Unlock()
	c.revokeHandles(ctx)
}

// Recent loads the recent destinations of the selected kind.
func (c *Controller) Recent(ctx context.Context) ([]models.SearchResult, error) {
	org := c.orgs.Selected()
	if org.ID == "" {
		return nil, precondition(msgSelectOrgFirst)
	}

	c.mu.Lock()
	kind := c.kind
	c.mu.Unlock()

	var (
		res []models.SearchResult
		err error
	)
	if kind == models.ScopeClient {
		res, err = c.destinations.ListRecentClients(ctx, org.ID, c.listLimit)
	} else {
		res, err = c.destinations.ListRecentCases(ctx, org.ID, c.listLimit)
	}
	if err != nil {
		return nil, c.checkAuth(ctx, err)
	}

	c.mu.Lock()
	c.results = res
	c.mu.Unlock()
	return res, nil
}

// Find filters the last loaded destinations.
func (c *Controller) Find(query string) []models.SearchResult {
	c.mu.Lock()
	res := c.results
	c.mu.Unlock()
	return c.destinations.Filter(res, query)
}

// Pick selects a destination among the loaded results and loads its tree.
func (c *Controller) Pick(ctx context.Context, id string) (models.Tree, error) {
	c.mu.Lock()
	var picked *models.SearchResult
	for i := range c.results {
		if c.results[i].ID == id {
			r := c.results[i]
			picked = &r
			break
		}
	}
	changed := picked != nil && (c.selected == nil || c.selected.ID != picked.ID)
	if picked != nil {
		c.selected = picked
		c.tree = models.Tree{}
		c.parentID = nil
	}
	c.mu.Unlock()

	if picked == nil {
		return models.Tree{}, precondition(fmt.Sprintf("unknown destination %q", id))
	}
	if changed {
		c.revokeHandles(ctx)
	}
	return c.RefreshTree(ctx)
}

// RefreshTree reloads the folder tree of the selected destination. The
// chosen folder survives when it is still present.
func (c *Controller) RefreshTree(ctx context.Context) (models.Tree, error) {
	c.mu.Lock()
	sel := c.selected
	kind := c.kind
	c.mu.Unlock()
	if sel == nil {
		return models.Tree{}, precondition(msgSelectScopeFirst)
	}

	tree, err := c.destinations.LoadTree(ctx, models.Scope{Kind: kind, ID: sel.ID}, sel.Raw)
	if err != nil {
		return models.Tree{}, c.checkAuth(ctx, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil || c.selected.ID != sel.ID {
		return tree, nil
	}
	c.tree = tree
	if c.parentID != nil && !hasFolder(tree, *c.parentID) {
		c.parentID = nil
	}
	return tree, nil
}

func hasFolder(t models.Tree, id string) bool {
	for _, f := range t.Folders() {
		if f.ID == id {
			return true
		}
	}
	return false
}

// SelectFolder sets the upload parent; an empty id means the root.
func (c *Controller) SelectFolder(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" {
		c.parentID = nil
		return nil
	}
	if !hasFolder(c.tree, id) {
		return precondition(fmt.Sprintf("unknown folder %q", id))
	}
	c.parentID = &id
	return nil
}

func (c *Controller) SetIncludeEML(on bool) {
	c.mu.Lock()
	c.includeEML = on
	c.mu.Unlock()
}

func (c *Controller) SetIncludeAttachments(on bool) {
	c.mu.Lock()
	c.includeAtt = on
	c.mu.Unlock()
}

func (c *Controller) revokeHandles(ctx context.Context) {
	c.mu.Lock()
	old := c.handles
	c.handles = nil
	c.mu.Unlock()

	for _, h := range old {
		if err := c.downloads.Revoke(h); err != nil {
			c.logger.Warn(ctx, "failed to revoke download handle", "path", h.Path, "error", err)
		}
	}
}

// allocate creates handles for files; on failure the ones already created
// are revoked.
func (c *Controller) allocate(ctx context.Context, files []models.AttachmentFile) ([]Handle, error) {
	out := make([]Handle, 0, len(files))
	for _, f := range files {
		h, err := c.downloads.Allocate(f)
		if err != nil {
			for _, done := range out {
				_ = c.downloads.Revoke(done)
			}
			return nil, err
		}
		out = append(out, h)
	}
	c.logger.Debug(ctx, "download handles allocated", "count", len(out))
	return out, nil
}

func sizeKB(n int64) int64 {
	return int64(math.Round(float64(n) / 1024))
}

// Prepare extracts the current item into a bundle and exposes download
// handles for every file.
func (c *Controller) Prepare(ctx context.Context) (*models.Bundle, error) {
	if err := c.begin(StatePreparing); err != nil {
		return nil, err
	}
	defer c.end()

	c.mu.Lock()
	c.prepared = nil
	c.mu.Unlock()
	c.revokeHandles(ctx)
	c.setStatus(msgPreparing)

	b, err := c.extractor.GetBundle(ctx)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	files := append([]models.AttachmentFile{b.EML}, b.Attachments...)
	handles, err := c.allocate(ctx, files)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	c.mu.Lock()
	c.prepared = b
	c.handles = handles
	c.mu.Unlock()

	c.setStatus(fmt.Sprintf("Ready: %s (%d KB), %d attachment(s)", b.EML.Name, sizeKB(b.EML.Size()), len(b.Attachments)))
	return b, nil
}

// ExportEML exposes a download handle for the eml alone.
func (c *Controller) ExportEML(ctx context.Context) (Handle, error) {
	if err := c.begin(StatePreparing); err != nil {
		return Handle{}, err
	}
	defer c.end()

	c.revokeHandles(ctx)
	c.setStatus(msgExportingEML)

	f, err := c.extractor.GetEML(ctx)
	if err != nil {
		return Handle{}, c.fail(ctx, err)
	}
	handles, err := c.allocate(ctx, []models.AttachmentFile{f})
	if err != nil {
		return Handle{}, c.fail(ctx, err)
	}

	c.mu.Lock()
	c.handles = handles
	c.mu.Unlock()
	c.setStatus(fmt.Sprintf("Ready: %s (%d KB)", f.Name, sizeKB(f.Size())))
	return handles[0], nil
}

// ExportAttachments exposes download handles for the attachments.
func (c *Controller) ExportAttachments(ctx context.Context) ([]Handle, error) {
	if err := c.begin(StatePreparing); err != nil {
		return nil, err
	}
	defer c.end()

	c.revokeHandles(ctx)
	c.setStatus(msgExportingAtt)

	files, err := c.extractor.GetAttachments(ctx)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	handles, err := c.allocate(ctx, files)
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	c.mu.Lock()
	c.handles = handles
	c.mu.Unlock()
	c.setStatus(fmt.Sprintf("Ready: %d attachment(s)", len(files)))
	return handles, nil
}

type uploadPlan struct {
	org      models.Org
	kind     models.ScopeKind
	scopeID  string
	parentID *string
	eml      bool
	att      bool
	prepared *models.Bundle
}

// plan checks the upload preconditions in order.
func (c *Controller) plan() (uploadPlan, error) {
	if !c.auth.State().Authenticated {
		return uploadPlan{}, precondition(msgLogInFirst)
	}
	org := c.orgs.Selected()
	if org.ID == "" {
		return uploadPlan{}, precondition(msgSelectOrgFirst)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return uploadPlan{}, precondition(msgSelectScopeFirst)
	}
	if !c.includeEML && !c.includeAtt {
		return uploadPlan{}, precondition(msgChooseAtLeastOne)
	}

	scopeID := c.selected.ID
	if len(c.tree.Nodes) > 0 && c.tree.ScopeID != "" {
		scopeID = c.tree.ScopeID
	}
	return uploadPlan{
		org:      org,
		kind:     c.kind,
		scopeID:  scopeID,
		parentID: c.parentID,
		eml:      c.includeEML,
		att:      c.includeAtt,
		prepared: c.prepared,
	}, nil
}

// Upload writes the selected files of the bundle to the chosen destination
// in order [eml, attachments...] and returns how many were uploaded. A
// non-empty emlName renames the eml node. The batch stops at the first
// failure; files already written stay.
func (c *Controller) Upload(ctx context.Context, emlName string) (int, error) {
	if err := c.begin(StateUploading); err != nil {
		return 0, err
	}
	defer c.end()

	p, err := c.plan()
	if err != nil {
		return 0, c.fail(ctx, err)
	}

	bundle := p.prepared
	if bundle == nil {
		c.setStatus(msgPreparingFiles)
		if bundle, err = c.extractor.GetBundle(ctx); err != nil {
			return 0, c.fail(ctx, err)
		}
	}

	files := bundle.Files(p.eml, p.att)
	if len(files) == 0 {
		return 0, c.fail(ctx, precondition(msgNothingToUpload))
	}

	scopeType := p.kind.StorageType()
	for i, f := range files {
		c.setStatus(fmt.Sprintf("Uploading %d/%d: %s", i+1, len(files), f.Name))

		req := services.UploadRequest{
			OrgID:     p.org.ID,
			ScopeType: scopeType,
			ScopeID:   p.scopeID,
			ParentID:  p.parentID,
			File:      f,
		}
		if i == 0 && p.eml {
			req.CustomFileName = emlName
		}

		if _, err := c.uploader.Upload(ctx, req); err != nil {
			c.logger.Error(ctx, "upload failed", "file", f.Name, "uploaded", i, "total", len(files), "error", err)
			c.checkAuth(ctx, err)
			text := common.StatusText(err)
			if i > 0 {
				text += fmt.Sprintf(" (Uploaded %d of %d before error)", i, len(files))
			}
			c.setStatus(text)
			return i, err
		}
	}

	if _, err := c.RefreshTree(ctx); err != nil {
		c.logger.Warn(ctx, "tree refresh after upload failed", "error", err)
	}

	c.mu.Lock()
	c.prepared = nil
	c.mu.Unlock()

	seq := c.setStatus(fmt.Sprintf("✅ Uploaded %d file(s)", len(files)))
	afterFunc(c.clearDelay, func() { c.clearStatus(seq) })
	c.logger.Info(ctx, "bundle uploaded", "files", len(files), "scope_type", scopeType, "scope_id", p.scopeID)
	return len(files), nil
}

// clearStatus empties the status line unless it changed since seq.
func (c *Controller) clearStatus(seq int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statusSeq == seq {
		c.status = ""
		c.statusSeq++
	}
}

// ItemChanged forgets the bundle of the previous mail item.
func (c *Controller) ItemChanged(ctx context.Context) {
	c.mu.Lock()
	c.prepared = nil
	if !c.busy {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.revokeHandles(ctx)
	c.setStatus("")
}

// Close revokes outstanding handles.
func (c *Controller) Close(ctx context.Context) {
	c.revokeHandles(ctx)
}
