package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ledgermail/internal/client/client"
	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/common"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

// Buckets per storage scope type.
const (
	BucketCase   = "case-attachments"
	BucketClient = "client-attachments"

	TableAttachmentNodes = "attachment_nodes"
)

// Test seams.
var (
	nowFn        = time.Now
	randomSuffix = func() (string, error) { return common.RandomBase36(10) }
)

// UploadRequest describes one file write. ScopeType is the storage term
// ("case" or "party"); ParentID nil means the root of the destination.
type UploadRequest struct {
	OrgID          string
	ScopeType      string
	ScopeID        string
	ParentID       *string
	File           models.AttachmentFile
	CustomFileName string
}

// UploadResult is where the bytes were stored.
type UploadResult struct {
	Bucket      string
	StoragePath string
}

// UploadService writes a file to object storage, then records it in
// attachment_nodes. The two steps are not atomic: when the insert fails the
// stored object is left behind and the error is returned.
type UploadService interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
}

type uploadService struct {
	remote  client.Remote
	storage client.Storage
	logger  logging.Logger
}

func NewUploadService(remote client.Remote, storage client.Storage, logger logging.Logger) UploadService {
	return &uploadService{remote: remote, storage: storage, logger: logger}
}

// BucketFor maps a storage scope type to its bucket.
func BucketFor(scopeType string) (string, error) {
	switch scopeType {
	case models.StorageScopeCase:
		return BucketCase, nil
	case models.StorageScopeParty:
		return BucketClient, nil
	}
	return "", fmt.Errorf("unknown scope type %q", scopeType)
}

// StoragePath builds "<org>/<scope>/<epoch-ms>-<suffix>.<ext>".
func StoragePath(orgID, scopeID string, f models.AttachmentFile, now time.Time, suffix string) string {
	return fmt.Sprintf("%s/%s/%d-%s.%s", orgID, scopeID, now.UnixMilli(), suffix, f.Ext())
}

func (s *uploadService) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	bucket, err := BucketFor(req.ScopeType)
	if err != nil {
		return UploadResult{}, err
	}

	suffix, err := randomSuffix()
	if err != nil {
		return UploadResult{}, fmt.Errorf("storage path: %w", err)
	}
	path := StoragePath(req.OrgID, req.ScopeID, req.File, nowFn(), suffix)

	if err := s.storage.Upload(ctx, bucket, path, req.File.Data, req.File.ContentType); err != nil {
		return UploadResult{}, err
	}

	name := req.File.Name
	if custom := strings.TrimSpace(req.CustomFileName); custom != "" {
		name = models.SanitizeFileName(custom)
	}

	var parent any
	if req.ParentID != nil {
		parent = *req.ParentID
	}
	var mime any
	if req.File.ContentType != "" {
		mime = req.File.ContentType
	}
	var size any
	if n := req.File.Size(); n > 0 {
		size = n
	}

	row := models.Row{
		"org_id":       req.OrgID,
		"scope_type":   req.ScopeType,
		"scope_id":     req.ScopeID,
		"type":         string(models.NodeFile),
		"name":         name,
		"parent_id":    parent,
		"storage_path": path,
		"mime_type":    mime,
		"file_size":    size,
	}
	if err := s.remote.Insert(ctx, TableAttachmentNodes, row); err != nil {
		s.logger.Warn(ctx, "metadata insert failed, stored object is orphaned", "bucket", bucket, "path", path, "error", err)
		return UploadResult{}, err
	}

	s.logger.Info(ctx, "file uploaded", "bucket", bucket, "path", path, "name", name)
	return UploadResult{Bucket: bucket, StoragePath: path}, nil
}
