package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/client/session"
	"github.com/dmitrijs2005/ledgermail/internal/common"
)

type fakeExtractor struct {
	bundle      *models.Bundle
	err         error
	bundleCalls int
	emlCalls    int
	attCalls    int
}

func (f *fakeExtractor) GetEML(ctx context.Context) (models.AttachmentFile, error) {
	f.emlCalls++
	if f.err != nil {
		return models.AttachmentFile{}, f.err
	}
	return f.bundle.EML, nil
}

func (f *fakeExtractor) GetAttachments(ctx context.Context) ([]models.AttachmentFile, error) {
	f.attCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle.Attachments, nil
}

func (f *fakeExtractor) GetBundle(ctx context.Context) (*models.Bundle, error) {
	f.bundleCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle, nil
}

// fakeDestinations serves fixed results and trees keyed by scope id.
type fakeDestinations struct {
	cases     []models.SearchResult
	clients   []models.SearchResult
	listErr   error
	listCalls []string
	trees     map[string]models.Tree
	treeErr   error
	treeCalls int
}

func (f *fakeDestinations) ListRecentCases(ctx context.Context, orgID string, limit int) ([]models.SearchResult, error) {
	f.listCalls = append(f.listCalls, "cases:"+orgID)
	return f.cases, f.listErr
}

func (f *fakeDestinations) ListRecentClients(ctx context.Context, orgID string, limit int) ([]models.SearchResult, error) {
	f.listCalls = append(f.listCalls, "clients:"+orgID)
	return f.clients, f.listErr
}

func (f *fakeDestinations) Filter(results []models.SearchResult, query string) []models.SearchResult {
	if query == "" {
		return results
	}
	var out []models.SearchResult
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Label), strings.ToLower(query)) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeDestinations) LoadTree(ctx context.Context, scope models.Scope, raw models.Row) (models.Tree, error) {
	f.treeCalls++
	if f.treeErr != nil {
		return models.Tree{}, f.treeErr
	}
	if t, ok := f.trees[scope.ID]; ok {
		return t, nil
	}
	return models.Tree{ScopeID: scope.ID, Nodes: []models.TreeNode{}}, nil
}

type fakeOrgs struct {
	orgs     []models.Org
	selected models.Org
	observed []session.State
	reloads  int
}

func (f *fakeOrgs) Boot(ctx context.Context) (models.Org, error) { return f.selected, nil }

func (f *fakeOrgs) Observe(ctx context.Context, st session.State) error {
	f.observed = append(f.observed, st)
	if st.Known && !st.Authenticated {
		f.selected = models.Org{}
	}
	return nil
}

func (f *fakeOrgs) Reload(ctx context.Context) error {
	f.reloads++
	if len(f.orgs) > 0 && f.selected.ID == "" {
		f.selected = f.orgs[0]
	}
	return nil
}

func (f *fakeOrgs) Orgs() []models.Org   { return f.orgs }
func (f *fakeOrgs) Selected() models.Org { return f.selected }

func (f *fakeOrgs) Select(ctx context.Context, id string) error {
	for _, o := range f.orgs {
		if o.ID == id {
			f.selected = o
			return nil
		}
	}
	return common.NewError(common.KindPreconditionUnmet, "unknown organization", nil)
}

type fakeAuth struct {
	st      session.State
	rejects int
}

func (f *fakeAuth) State() session.State { return f.st }

func (f *fakeAuth) Reject() {
	f.rejects++
	f.st = session.State{}
}

// fakeRemote records attachment_nodes inserts.
type fakeRemote struct {
	mu      sync.Mutex
	inserts []models.Row
	failAt  int
	failErr error
}

func (f *fakeRemote) ListMyOrgs(ctx context.Context) ([]models.Row, error) { return nil, nil }

func (f *fakeRemote) Select(ctx context.Context, q client.Query) ([]models.Row, error) {
	return nil, errors.New("not used")
}

func (f *fakeRemote) ListAttachmentTree(ctx context.Context, scopeType, scopeID string, limit, offset int) ([]models.Row, error) {
	return nil, errors.New("not used")
}

func (f *fakeRemote) Insert(ctx context.Context, table string, row models.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.inserts)+1 == f.failAt {
		if f.failErr != nil {
			return f.failErr
		}
		return common.NewError(common.KindRemoteCallFailed, "", errors.New("permission denied for table attachment_nodes"))
	}
	f.inserts = append(f.inserts, row)
	return nil
}

type storedObject struct {
	Bucket string
	Path   string
}

type fakeStorage struct {
	mu      sync.Mutex
	objects []storedObject
}

func (s *fakeStorage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, storedObject{bucket, path})
	return nil
}

// timers captures scheduled auto-clear callbacks.
type timers struct {
	delays []time.Duration
	funcs  []func()
}

func (t *timers) afterFunc(d time.Duration, f func()) {
	t.delays = append(t.delays, d)
	t.funcs = append(t.funcs, f)
}
