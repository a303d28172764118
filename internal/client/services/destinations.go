// Package services contains the application services of the ledgermail
// client: destination discovery over the document service, the uploader that
// writes bundle files into it, and the organization memory.
package services

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/common"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

// DefaultListLimit and DefaultTreeLimit bound the remote queries.
const (
	DefaultListLimit = 200
	DefaultTreeLimit = 10000
)

// Tables holding destinations.
const (
	TableCases   = "cases"
	TableParties = "parties"
)

// Probe lists, tried in order.
var (
	orgFields   = []string{"org_id", "organization_id"}
	orderFields = []string{"updated_at", "created_at", "inserted_at"}
)

var (
	caseLabelFields = []string{
		"case_name", "name", "title", "case_title", "display_name", "subject",
		"reference", "ref", "case_reference", "case_number", "matter_number",
		"matter", "description",
	}
	caseLabelKey = regexp.MustCompile(`(?i)(case|matter|title|name|subject|reference|ref|number)`)

	clientLabelFields = []string{"name", "display_name", "company_name", "legal_name", "full_name"}
	clientLabelKey    = regexp.MustCompile(`(?i)(name|company|display)`)
	clientNumber      = []string{"organization_number", "org_number", "org_nr", "vat_number", "registration_number"}

	clientTypeFields = []string{"party_type", "type", "kind", "role", "category"}

	filterFields = []string{
		"title", "case_title", "reference", "case_number", "matter_number",
		"name", "company_name", "display_name", "organization_number", "email",
	}

	treeCandidateFields = []string{
		"id", "party_id", "partyId", "client_id", "clientId",
		"client_scope_id", "clientScopeId", "legacy_client_id", "legacyClientId",
	}
	nodeKindFields   = []string{"kind", "type", "node_type", "nodeType", "item_type", "itemType"}
	nodeNameFields   = []string{"name", "filename", "title"}
	nodeParentFields = []string{"parent_id", "parentId"}
)

// DestinationService discovers and labels upload destinations.
//
// Contract:
//   - ListRecentCases / ListRecentClients: newest destinations of an
//     organization. Rows whose id is not a UUID are omitted. When every schema
//     probe fails the error matches common.ErrSchemaMismatch.
//   - Filter: case-insensitive substring match; empty query returns input.
//   - LoadTree: attachment folder tree of a destination, trying alternate ids
//     found in the selected row for client scopes.
type DestinationService interface {
	ListRecentCases(ctx context.Context, orgID string, limit int) ([]models.SearchResult, error)
	ListRecentClients(ctx context.Context, orgID string, limit int) ([]models.SearchResult, error)
	Filter(results []models.SearchResult, query string) []models.SearchResult
	LoadTree(ctx context.Context, scope models.Scope, raw models.Row) (models.Tree, error)
}

type destinationService struct {
	remote    client.Remote
	treeLimit int
	logger    logging.Logger
}

// NewDestinationService constructs a DestinationService. A non-positive
// treeLimit selects DefaultTreeLimit.
func NewDestinationService(remote client.Remote, treeLimit int, logger logging.Logger) DestinationService {
	if treeLimit <= 0 {
		treeLimit = DefaultTreeLimit
	}
	return &destinationService{remote: remote, treeLimit: treeLimit, logger: logger}
}

// listWithFallbacks probes every org field with every order field, then every
// org field unordered. The first successful query wins.
func (s *destinationService) listWithFallbacks(ctx context.Context, table, orgID string, limit int) ([]models.Row, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var lastErr error
	try := func(orgField, orderField string) ([]models.Row, bool) {
		rows, err := s.remote.Select(ctx, client.Query{
			Table:   table,
			Column:  orgField,
			Value:   orgID,
			OrderBy: orderField,
			Limit:   limit,
		})
		if err != nil {
			s.logger.Debug(ctx, "schema probe failed", "table", table, "org_field", orgField, "order_field", orderField, "error", err)
			lastErr = err
			return nil, false
		}
		return rows, true
	}

	for _, orgField := range orgFields {
		for _, orderField := range orderFields {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if rows, ok := try(orgField, orderField); ok {
				return rows, nil
			}
		}
	}
	for _, orgField := range orgFields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rows, ok := try(orgField, ""); ok {
			return rows, nil
		}
	}

	return nil, common.NewError(common.KindSchemaMismatch, fmt.Sprintf("failed to load from %s", table), lastErr)
}

func (s *destinationService) ListRecentCases(ctx context.Context, orgID string, limit int) ([]models.SearchResult, error) {
	rows, err := s.listWithFallbacks(ctx, TableCases, orgID, limit)
	if err != nil {
		return nil, err
	}
	return s.results(ctx, rows, caseLabel), nil
}

// ListRecentClients reads parties only. Legacy client ids do not key the
// attachment tree, so there is no fallback to a clients table.
func (s *destinationService) ListRecentClients(ctx context.Context, orgID string, limit int) ([]models.SearchResult, error) {
	rows, err := s.listWithFallbacks(ctx, TableParties, orgID, limit)
	if err != nil {
		return nil, err
	}

	var clients []models.Row
	for _, r := range rows {
		if isClientParty(r) {
			clients = append(clients, r)
		}
	}
	if len(clients) == 0 {
		clients = rows
	}
	return s.results(ctx, clients, clientLabel), nil
}

func (s *destinationService) results(ctx context.Context, rows []models.Row, label func(models.Row) string) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(rows))
	for _, r := range rows {
		id := r.Text("id")
		if !common.IsUUID(id) {
			s.logger.Debug(ctx, "skipping row without uuid id", "id", id)
			continue
		}
		out = append(out, models.SearchResult{ID: id, Label: label(r), Raw: r})
	}
	return out
}

func isClientParty(r models.Row) bool {
	if v, ok := r["is_client"].(bool); ok && v {
		return true
	}
	for _, f := range clientTypeFields {
		switch strings.ToLower(r.String(f)) {
		case "client", "klient":
			return true
		}
	}
	return false
}

// heuristicLabel scans keys matching re, in sorted order, for a non-UUID
// string value.
func heuristicLabel(r models.Row, re *regexp.Regexp) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		if v := r.String(k); v != "" && !common.IsUUID(v) {
			return v
		}
	}
	return ""
}

func caseLabel(r models.Row) string {
	label := r.FirstString(caseLabelFields...)
	if label == "" {
		label = heuristicLabel(r, caseLabelKey)
	}
	if label != "" && !common.IsUUID(label) {
		return label
	}
	return "Case " + common.ShortID(r.Text("id"))
}

func clientLabel(r models.Row) string {
	name := r.FirstString(clientLabelFields...)
	if name == "" {
		name = heuristicLabel(r, clientLabelKey)
	}
	if name == "" {
		name = "Client " + common.ShortID(r.Text("id"))
	}
	if no := r.FirstString(clientNumber...); no != "" {
		return name + " (" + no + ")"
	}
	return name
}

// Filter keeps results whose label, or a few raw fields, contain query.
func (s *destinationService) Filter(results []models.SearchResult, query string) []models.SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return results
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Label), q) {
			out = append(out, r)
			continue
		}

		var hay []string
		for _, f := range filterFields {
			if v := r.Raw.Text(f); v != "" {
				hay = append(hay, v)
			}
		}
		if strings.Contains(strings.ToLower(strings.Join(hay, " ")), q) {
			out = append(out, r)
		}
	}
	return out
}

// treeCandidates lists the ids the tree may be keyed on, in priority order.
func treeCandidates(scope models.Scope, raw models.Row) []string {
	if scope.Kind != models.ScopeClient {
		return []string{scope.ID}
	}

	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if !common.IsUUID(v) || seen[strings.ToLower(v)] {
			return
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}

	add(scope.ID)
	for _, f := range treeCandidateFields {
		add(raw.String(f))
	}
	return out
}

// LoadTree returns the first non-empty tree among the candidates. A failing
// candidate falls through to the next one; only when every candidate failed
// is the last error returned. Tree.ScopeID is the id the nodes belong to.
func (s *destinationService) LoadTree(ctx context.Context, scope models.Scope, raw models.Row) (models.Tree, error) {
	scopeType := scope.Kind.StorageType()
	candidates := treeCandidates(scope, raw)

	var lastErr error
	failed := 0
	for _, id := range candidates {
		rows, err := s.remote.ListAttachmentTree(ctx, scopeType, id, s.treeLimit, 0)
		if err != nil {
			s.logger.Debug(ctx, "tree candidate failed", "scope_type", scopeType, "scope_id", id, "error", err)
			lastErr = err
			failed++
			continue
		}
		if len(rows) == 0 {
			continue
		}

		nodes := make([]models.TreeNode, 0, len(rows))
		for _, r := range rows {
			nodes = append(nodes, normalizeNode(r))
		}
		if id != scope.ID {
			s.logger.Info(ctx, "attachment tree found under alternate id", "selected", scope.ID, "tree", id)
		}
		return models.Tree{ScopeID: id, Nodes: nodes}, nil
	}

	if len(candidates) > 0 && failed == len(candidates) {
		if common.KindOf(lastErr) == "" {
			lastErr = common.NewError(common.KindRemoteCallFailed, "", lastErr)
		}
		return models.Tree{}, lastErr
	}
	return models.Tree{ScopeID: scope.ID, Nodes: []models.TreeNode{}}, nil
}

func normalizeNode(r models.Row) models.TreeNode {
	n := models.TreeNode{
		ID:   r.Text("id"),
		Kind: models.NodeFile,
		Name: r.FirstString(nodeNameFields...),
		Raw:  r,
	}
	for _, f := range nodeKindFields {
		if strings.ToLower(r.String(f)) == string(models.NodeFolder) {
			n.Kind = models.NodeFolder
			break
		}
	}
	if n.Name == "" {
		n.Name = "(unnamed)"
	}
	for _, f := range nodeParentFields {
		if p := r.Text(f); p != "" {
			n.ParentID = &p
			break
		}
	}
	return n
}
