package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/common"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

// Extractor produces files from the host's current mail item.
type Extractor interface {
	GetEML(ctx context.Context) (models.AttachmentFile, error)
	GetAttachments(ctx context.Context) ([]models.AttachmentFile, error)
	GetBundle(ctx context.Context) (*models.Bundle, error)
}

type extractor struct {
	mailbox Mailbox
	logger  logging.Logger
}

// NewExtractor binds an Extractor to the host mailbox.
func NewExtractor(mailbox Mailbox, logger logging.Logger) Extractor {
	return &extractor{mailbox: mailbox, logger: logger}
}

func (e *extractor) currentItem() (Item, error) {
	if e.mailbox == nil {
		return nil, common.NewError(common.KindHostUnavailable, "No mailbox item found. Open an email in Read mode.", nil)
	}
	item := e.mailbox.Item()
	if item == nil {
		return nil, common.NewError(common.KindHostUnavailable, "No mailbox item found. Open an email in Read mode.", nil)
	}
	return item, nil
}

// GetEML returns the message as "<sanitized subject>.eml".
func (e *extractor) GetEML(ctx context.Context) (models.AttachmentFile, error) {
	item, err := e.currentItem()
	if err != nil {
		return models.AttachmentFile{}, err
	}

	getter, ok := item.(FileGetter)
	if !ok {
		return models.AttachmentFile{}, common.NewError(common.KindHostUnsupported, "get-as-file is not available in this mail client", nil)
	}

	value, err := getter.GetAsFile(ctx)
	if err != nil {
		return models.AttachmentFile{}, fmt.Errorf("get as file: %w", err)
	}

	subject := item.Subject()
	if strings.TrimSpace(subject) == "" {
		subject = "email"
	}
	name := models.SanitizeWithSuffix(subject, ".eml")

	var data []byte
	switch v := value.(type) {
	case string:
		data, err = emlFromBase64(v)
	case FileHandle:
		data, err = e.readSlices(ctx, v)
	default:
		err = common.NewError(common.KindHostUnsupported,
			fmt.Sprintf("unexpected get-as-file result %T (neither base64 string nor slice file)", value), nil)
	}
	if err != nil {
		return models.AttachmentFile{}, err
	}

	e.logger.Debug(ctx, "extracted eml", "name", name, "bytes", len(data))
	return models.AttachmentFile{Name: name, ContentType: common.MIMEMessageRFC822, Data: data}, nil
}

func emlFromBase64(s string) ([]byte, error) {
	payload := stripSpace(s)
	if payload == "" {
		return nil, common.NewError(common.KindEmptyPayload, "mail client returned an empty EML payload", nil)
	}
	data, err := decodeBase64(payload)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, common.NewError(common.KindEmptyPayload, "mail client returned an empty EML payload", nil)
	}
	return data, nil
}

// sliceCount prefers the declared count, then ceil(size/sliceSize).
func sliceCount(p FileProperties) int {
	if p.SliceCount > 0 {
		return p.SliceCount
	}
	if p.LegacySliceCount > 0 {
		return p.LegacySliceCount
	}
	sliceSize := p.SliceSize
	if sliceSize <= 0 {
		sliceSize = p.LegacySliceSize
	}
	if p.Size > 0 && sliceSize > 0 {
		return int((p.Size + sliceSize - 1) / sliceSize)
	}
	return 0
}

// readSlices reads every slice in index order and always closes the handle.
func (e *extractor) readSlices(ctx context.Context, h FileHandle) (data []byte, err error) {
	defer func() {
		closer, ok := h.(FileCloser)
		if !ok {
			return
		}
		if cerr := closer.Close(ctx); cerr != nil {
			e.logger.Warn(ctx, "closing host file failed", "error", cerr)
		}
	}()

	count := sliceCount(h.Properties())
	if count <= 0 {
		return nil, common.NewError(common.KindEmptyPayload, "mail client returned an empty file (sliceCount=0)", nil)
	}

	var buf []byte
	for i := 0; i < count; i++ {
		slice, err := h.GetSlice(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("get slice %d: %w", i, err)
		}
		b, err := sliceBytes(slice.Data)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		e.logger.Debug(ctx, "read slice", "index", i, "bytes", len(b))
		buf = append(buf, b...)
	}
	if len(buf) == 0 {
		return nil, common.NewError(common.KindEmptyPayload, "mail client returned an empty EML payload", nil)
	}
	return buf, nil
}

// GetAttachments returns one file per listed attachment, in listing order.
// Any failure aborts the whole call.
func (e *extractor) GetAttachments(ctx context.Context) ([]models.AttachmentFile, error) {
	item, err := e.currentItem()
	if err != nil {
		return nil, err
	}

	listed := item.Attachments()
	if len(listed) == 0 {
		return []models.AttachmentFile{}, nil
	}

	getter, ok := item.(AttachmentContentGetter)
	if !ok {
		return nil, common.NewError(common.KindHostUnsupported, "attachment content is not available in this mail client", nil)
	}

	files := make([]models.AttachmentFile, 0, len(listed))
	for _, att := range listed {
		content, err := getter.GetAttachmentContent(ctx, att.ID)
		if err != nil {
			return nil, fmt.Errorf("get attachment content for %s: %w", att.Name, err)
		}

		f, err := attachmentFile(att, content)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func attachmentFile(att AttachmentDetails, content AttachmentContent) (models.AttachmentFile, error) {
	raw := att.Name
	if strings.TrimSpace(raw) == "" {
		raw = "attachment-" + att.ID
	}
	name := models.SanitizeFileName(raw)

	switch content.Format {
	case FormatBase64:
		data, err := decodeBase64(content.Content)
		if err != nil {
			return models.AttachmentFile{}, fmt.Errorf("attachment %q: %w", name, err)
		}
		ct := att.ContentType
		if ct == "" {
			ct = common.MIMEOctetStream
		}
		return models.AttachmentFile{Name: name, ContentType: ct, Data: data}, nil

	case FormatEML:
		if !strings.HasSuffix(name, ".eml") {
			name = models.SanitizeWithSuffix(name, ".eml")
		}
		return models.AttachmentFile{Name: name, ContentType: common.MIMEMessageRFC822, Data: []byte(content.Content)}, nil

	case FormatURL:
		return models.AttachmentFile{}, common.NewError(common.KindUnsupportedAttachmentKind,
			fmt.Sprintf("attachment %q is a url-type attachment and is not supported", name), nil)

	default:
		return models.AttachmentFile{}, common.NewError(common.KindUnsupportedAttachmentKind,
			fmt.Sprintf("unsupported attachment format %q for %q", content.Format, name), nil)
	}
}

// GetBundle extracts the eml and the attachments of the current item.
func (e *extractor) GetBundle(ctx context.Context) (*models.Bundle, error) {
	item, err := e.currentItem()
	if err != nil {
		return nil, err
	}

	eml, err := e.GetEML(ctx)
	if err != nil {
		return nil, err
	}
	attachments, err := e.GetAttachments(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Bundle{
		EML:         eml,
		Attachments: attachments,
		Meta: models.MailMeta{
			Subject:  item.Subject(),
			From:     item.From(),
			Received: item.DateTimeCreated(),
		},
	}, nil
}
