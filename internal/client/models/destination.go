package models

import (
	"fmt"
	"strings"
)

// Row is one record returned by the remote service with its original fields.
type Row map[string]any

// String returns the trimmed value of key when it is a non-empty string.
func (r Row) String(key string) string {
	v, ok := r[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Text renders any non-nil value of key as a string.
func (r Row) Text(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// FirstString returns the first non-empty string among keys.
func (r Row) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}

// ScopeKind is the user-facing destination discriminator.
type ScopeKind string

const (
	ScopeCase   ScopeKind = "case"
	ScopeClient ScopeKind = "client"
)

// Storage terms for scope_type columns.
const (
	StorageScopeCase  = "case"
	StorageScopeParty = "party"
)

// ParseScopeKind accepts "case" or "client".
func ParseScopeKind(s string) (ScopeKind, bool) {
	switch ScopeKind(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeCase:
		return ScopeCase, true
	case ScopeClient:
		return ScopeClient, true
	}
	return "", false
}

// StorageType translates the kind to the remote vocabulary ("client" -> "party").
func (k ScopeKind) StorageType() string {
	if k == ScopeClient {
		return StorageScopeParty
	}
	return StorageScopeCase
}

// Scope identifies a destination.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// SearchResult is a labeled destination candidate.
type SearchResult struct {
	ID    string
	Label string
	Raw   Row
}

// NodeKind distinguishes folders from files in the attachment tree.
type NodeKind string

const (
	NodeFolder NodeKind = "folder"
	NodeFile   NodeKind = "file"
)

// TreeNode is one normalized attachment_nodes entry. ParentID is nil at the
// root of the destination.
type TreeNode struct {
	ID       string
	Name     string
	Kind     NodeKind
	ParentID *string
	Raw      Row
}

// Tree is the attachment forest of a destination together with the scope id
// it was loaded for.
type Tree struct {
	ScopeID string
	Nodes   []TreeNode
}

// Folders returns the selectable folder nodes in order.
func (t Tree) Folders() []TreeNode {
	var out []TreeNode
	for _, n := range t.Nodes {
		if n.Kind == NodeFolder {
			out = append(out, n)
		}
	}
	return out
}

// Org is an organization the user belongs to.
type Org struct {
	ID   string
	Name string
}
