package host

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/dmitrijs2005/ledgermail/internal/client/mail"
)

// DefaultSliceSize is the slice size used when none is configured.
const DefaultSliceSize = 64 * 1024

type attachmentPart struct {
	details mail.AttachmentDetails
	format  string
	body    []byte
}

// Message is a mail item backed by raw RFC 822 bytes.
type Message struct {
	raw       []byte
	sliceSize int

	id      string
	subject string
	from    string
	to      []string
	cc      []string
	date    time.Time

	attachments []attachmentPart
}

var (
	_ mail.Item                    = (*Message)(nil)
	_ mail.FileGetter              = (*Message)(nil)
	_ mail.AttachmentContentGetter = (*Message)(nil)
)

// OpenFile reads and parses a .eml file.
func OpenFile(path string, sliceSize int) (*Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message file: %w", err)
	}
	return Parse(raw, sliceSize)
}

// Parse builds a Message from raw bytes. A non-positive sliceSize selects
// DefaultSliceSize.
func Parse(raw []byte, sliceSize int) (*Message, error) {
	if sliceSize <= 0 {
		sliceSize = DefaultSliceSize
	}

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	m := &Message{raw: raw, sliceSize: sliceSize}

	h := mr.Header
	m.subject, _ = h.Subject()
	m.id, _ = h.MessageID()
	m.date, _ = h.Date()
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		m.from = from[0].Address
	}
	m.to = addresses(h, "To")
	m.cc = addresses(h, "Cc")

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read message part: %w", err)
		}

		switch ph := part.Header.(type) {
		case *gomail.AttachmentHeader:
			name, _ := ph.Filename()
			ct, _, _ := ph.ContentType()
			if err := m.addAttachment(name, ct, false, part.Body); err != nil {
				return nil, err
			}

		case *gomail.InlineHeader:
			ct, params, _ := ph.ContentType()
			if strings.HasPrefix(ct, "text/") && ct != "text/calendar" && ct != "text/uri-list" {
				continue
			}
			name := params["name"]
			if _, dparams, err := ph.ContentDisposition(); err == nil && dparams["filename"] != "" {
				name = dparams["filename"]
			}
			if err := m.addAttachment(name, ct, true, part.Body); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func addresses(h gomail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

func (m *Message) addAttachment(name, contentType string, inline bool, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read attachment %q: %w", name, err)
	}
	m.attachments = append(m.attachments, attachmentPart{
		details: mail.AttachmentDetails{
			ID:          "att-" + strconv.Itoa(len(m.attachments)),
			Name:        name,
			ContentType: contentType,
			Size:        int64(len(data)),
			IsInline:    inline,
		},
		format: formatFor(contentType),
		body:   data,
	})
	return nil
}

// formatFor maps a MIME type to the host's attachment content format.
func formatFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "message/rfc822":
		return mail.FormatEML
	case "text/calendar":
		return mail.FormatICal
	case "message/external-body", "text/uri-list":
		return mail.FormatURL
	default:
		return mail.FormatBase64
	}
}

func (m *Message) ItemID() string             { return m.id }
func (m *Message) ItemType() string           { return "message" }
func (m *Message) Subject() string            { return m.subject }
func (m *Message) From() string               { return m.from }
func (m *Message) To() []string               { return m.to }
func (m *Message) Cc() []string               { return m.cc }
func (m *Message) DateTimeCreated() time.Time { return m.date }

func (m *Message) Attachments() []mail.AttachmentDetails {
	out := make([]mail.AttachmentDetails, 0, len(m.attachments))
	for _, a := range m.attachments {
		out = append(out, a.details)
	}
	return out
}

// GetAsFile returns the whole message as base64 when it fits in one slice,
// otherwise a sliced file the caller must close.
func (m *Message) GetAsFile(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.raw) <= m.sliceSize {
		return base64.StdEncoding.EncodeToString(m.raw), nil
	}
	return newSliceFile(m.raw, m.sliceSize), nil
}

// GetAttachmentContent returns one attachment in the host's content shape.
// eml and url content is text, everything else is base64.
func (m *Message) GetAttachmentContent(ctx context.Context, id string) (mail.AttachmentContent, error) {
	if err := ctx.Err(); err != nil {
		return mail.AttachmentContent{}, err
	}
	for _, a := range m.attachments {
		if a.details.ID != id {
			continue
		}
		switch a.format {
		case mail.FormatBase64:
			return mail.AttachmentContent{Format: a.format, Content: base64.StdEncoding.EncodeToString(a.body)}, nil
		default:
			return mail.AttachmentContent{Format: a.format, Content: string(a.body)}, nil
		}
	}
	return mail.AttachmentContent{}, fmt.Errorf("attachment %q not found", id)
}

// sliceFile serves a byte buffer in fixed-size slices.
type sliceFile struct {
	mu        sync.Mutex
	data      []byte
	sliceSize int
	closed    bool
}

func newSliceFile(data []byte, sliceSize int) *sliceFile {
	return &sliceFile{data: data, sliceSize: sliceSize}
}

func (f *sliceFile) Properties() mail.FileProperties {
	n := (len(f.data) + f.sliceSize - 1) / f.sliceSize
	return mail.FileProperties{
		SliceCount: n,
		Size:       int64(len(f.data)),
		SliceSize:  int64(f.sliceSize),
	}
}

func (f *sliceFile) GetSlice(ctx context.Context, index int) (mail.Slice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return mail.Slice{}, fmt.Errorf("file is closed")
	}
	start := index * f.sliceSize
	if index < 0 || start >= len(f.data) {
		return mail.Slice{}, fmt.Errorf("slice %d out of range", index)
	}
	end := min(start+f.sliceSize, len(f.data))
	return mail.Slice{Index: index, Data: f.data[start:end]}, nil
}

func (f *sliceFile) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
