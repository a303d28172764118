package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/client/repositories/settings"
	"github.com/dmitrijs2005/ledgermail/internal/client/session"
	"github.com/dmitrijs2005/ledgermail/internal/common"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

var (
	orgIDFields   = []string{"org_id", "id", "organization_id"}
	orgNameFields = []string{"name", "org_name", "organization_name", "display_name", "title"}
)

// OrgService remembers the selected organization across relaunches.
//
// Contract:
//   - Boot: restore the persisted selection.
//   - Observe: react to the auth state. Authenticated loads the org list once
//     per session (per signed-in identity) and reconciles the selection with
//     it; a confirmed sign-out
//     clears the selection and the persisted keys; an unknown state does
//     nothing.
//   - Select: user choice, persisted when it changes.
type OrgService interface {
	Boot(ctx context.Context) (models.Org, error)
	Observe(ctx context.Context, st session.State) error
	Reload(ctx context.Context) error
	Orgs() []models.Org
	Selected() models.Org
	Select(ctx context.Context, id string) error
}

type orgService struct {
	mu        sync.Mutex
	remote    client.Remote
	store     settings.Repository
	logger    logging.Logger
	orgs      []models.Org
	selected  models.Org
	persisted models.Org
	loaded    bool
	// identity the org list was loaded for
	owner string
}

func NewOrgService(remote client.Remote, store settings.Repository, logger logging.Logger) OrgService {
	return &orgService{remote: remote, store: store, logger: logger}
}

func (s *orgService) Boot(ctx context.Context) (models.Org, error) {
	id, err := s.store.Get(ctx, common.OrgIDKey)
	if err != nil {
		return models.Org{}, err
	}
	name, err := s.store.Get(ctx, common.OrgNameKey)
	if err != nil {
		return models.Org{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = models.Org{ID: id, Name: name}
	s.selected = s.persisted
	return s.selected, nil
}

func (s *orgService) Observe(ctx context.Context, st session.State) error {
	if !st.Known {
		return nil
	}
	if !st.Authenticated {
		return s.clear(ctx)
	}

	who := st.Identity()
	s.mu.Lock()
	current := s.loaded && s.owner == who
	if !current {
		s.orgs = nil
		s.loaded = false
	}
	s.mu.Unlock()
	if current {
		return nil
	}

	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.owner = who
	s.mu.Unlock()
	return nil
}

// Reload fetches the org list and reconciles the selection with it.
func (s *orgService) Reload(ctx context.Context) error {
	rows, err := s.remote.ListMyOrgs(ctx)
	if err != nil {
		return err
	}

	orgs := make([]models.Org, 0, len(rows))
	for _, r := range rows {
		id := r.FirstString(orgIDFields...)
		if id == "" {
			continue
		}
		name := r.FirstString(orgNameFields...)
		if name == "" {
			name = "Org " + common.ShortID(id)
		}
		orgs = append(orgs, models.Org{ID: id, Name: name})
	}

	s.mu.Lock()
	s.orgs = orgs
	s.loaded = true
	s.mu.Unlock()

	if len(orgs) == 0 {
		return s.clearSelection(ctx)
	}

	s.mu.Lock()
	chosen, ok := find(orgs, s.persisted.ID)
	if !ok {
		chosen, ok = find(orgs, s.selected.ID)
	}
	if !ok {
		chosen = orgs[0]
	}
	s.selected = chosen
	s.mu.Unlock()

	return s.persist(ctx, chosen)
}

func find(orgs []models.Org, id string) (models.Org, bool) {
	if id == "" {
		return models.Org{}, false
	}
	for _, o := range orgs {
		if o.ID == id {
			return o, true
		}
	}
	return models.Org{}, false
}

func (s *orgService) Orgs() []models.Org {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Org(nil), s.orgs...)
}

func (s *orgService) Selected() models.Org {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *orgService) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	org, ok := find(s.orgs, id)
	if ok {
		s.selected = org
	}
	s.mu.Unlock()

	if !ok {
		return common.NewError(common.KindPreconditionUnmet, fmt.Sprintf("unknown organization %q", id), nil)
	}
	return s.persist(ctx, org)
}

// persist mirrors org to storage only when it differs from what is stored.
func (s *orgService) persist(ctx context.Context, org models.Org) error {
	s.mu.Lock()
	same := s.persisted == org
	s.mu.Unlock()
	if same {
		return nil
	}

	if err := s.store.Set(ctx, common.OrgIDKey, org.ID); err != nil {
		return err
	}
	if err := s.store.Set(ctx, common.OrgNameKey, org.Name); err != nil {
		return err
	}

	s.mu.Lock()
	s.persisted = org
	s.mu.Unlock()
	s.logger.Debug(ctx, "organization persisted", "org_id", org.ID)
	return nil
}

func (s *orgService) clearSelection(ctx context.Context) error {
	s.mu.Lock()
	s.selected = models.Org{}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, common.OrgIDKey); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, common.OrgNameKey); err != nil {
		return err
	}

	s.mu.Lock()
	s.persisted = models.Org{}
	s.mu.Unlock()
	return nil
}

// clear forgets everything after a confirmed sign-out; the next sign-in loads
// the org list again.
func (s *orgService) clear(ctx context.Context) error {
	s.mu.Lock()
	s.orgs = nil
	s.loaded = false
	s.owner = ""
	s.mu.Unlock()
	return s.clearSelection(ctx)
}
