package services

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/common"
)

// fakeRemote implements client.Remote for unit tests.
type fakeRemote struct {
	mu sync.Mutex

	selectFn func(q client.Query) ([]models.Row, error)
	queries  []client.Query

	orgRows  []models.Row
	orgErr   error
	orgCalls int

	trees     map[string][]models.Row
	treeErrs  map[string]error
	treeCalls []string

	inserts   []models.Row
	insertErr error
}

func (f *fakeRemote) ListMyOrgs(ctx context.Context) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgCalls++
	return f.orgRows, f.orgErr
}

func (f *fakeRemote) Select(ctx context.Context, q client.Query) ([]models.Row, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fn := f.selectFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("no select configured")
	}
	return fn(q)
}

func (f *fakeRemote) ListAttachmentTree(ctx context.Context, scopeType, scopeID string, limit, offset int) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.treeCalls = append(f.treeCalls, scopeType+":"+scopeID)
	if err := f.treeErrs[scopeID]; err != nil {
		return nil, err
	}
	return f.trees[scopeID], nil
}

func (f *fakeRemote) Insert(ctx context.Context, table string, row models.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table != TableAttachmentNodes {
		return errors.New("unexpected table " + table)
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts = append(f.inserts, row)
	return nil
}

type storedObject struct {
	Bucket      string
	Path        string
	Data        []byte
	ContentType string
}

// fakeStorage implements client.Storage.
type fakeStorage struct {
	mu      sync.Mutex
	objects []storedObject
	err     error
}

func (s *fakeStorage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.objects = append(s.objects, storedObject{bucket, path, data, contentType})
	return nil
}

// memSettings implements settings.Repository in memory.
type memSettings struct {
	items   map[string]string
	writes  int
	deletes int
	setErr  error
}

func newMemSettings() *memSettings { return &memSettings{items: map[string]string{}} }

func (m *memSettings) Get(ctx context.Context, key string) (string, error) {
	return m.items[key], nil
}

func (m *memSettings) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.writes++
	m.items[key] = value
	return nil
}

func (m *memSettings) Delete(ctx context.Context, key string) error {
	m.deletes++
	delete(m.items, key)
	return nil
}

func (m *memSettings) List(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out, nil
}

func (m *memSettings) Clear(ctx context.Context) error {
	m.items = map[string]string{}
	return nil
}

func remoteErr(msg string) error {
	return common.NewError(common.KindRemoteCallFailed, "", errors.New(msg))
}
