package mail

import (
	"context"
	"time"
)

// Mailbox exposes the item currently open in the host. Item returns nil when
// no message is available (the user is not in Read mode).
type Mailbox interface {
	Item() Item
}

// Item is the read-only view of a mail item offered by the host.
type Item interface {
	ItemID() string
	ItemType() string
	Subject() string
	From() string
	To() []string
	Cc() []string
	DateTimeCreated() time.Time
	Attachments() []AttachmentDetails
}

// FileGetter is the optional "get-as-file" capability. The returned value is
// either a base64 string or a FileHandle.
type FileGetter interface {
	GetAsFile(ctx context.Context) (any, error)
}

// AttachmentContentGetter returns the content of one listed attachment.
type AttachmentContentGetter interface {
	GetAttachmentContent(ctx context.Context, id string) (AttachmentContent, error)
}

// AttachmentDetails describes a listed attachment.
type AttachmentDetails struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
	IsInline    bool
}

// Attachment content formats reported by the host.
const (
	FormatBase64 = "base64"
	FormatEML    = "eml"
	FormatURL    = "url"
	FormatICal   = "iCal"
)

// AttachmentContent is the {format, content} union returned by the host.
type AttachmentContent struct {
	Format  string
	Content string
}

// FileProperties are the declared sizes of a sliced file. Zero means the host
// did not declare the field; the Legacy fields are the underscore-prefixed
// variants some host builds use instead.
type FileProperties struct {
	SliceCount       int
	LegacySliceCount int
	Size             int64
	SliceSize        int64
	LegacySliceSize  int64
}

// FileHandle is a sliced file representation. Slices are read serially by
// zero-based index.
type FileHandle interface {
	Properties() FileProperties
	GetSlice(ctx context.Context, index int) (Slice, error)
}

// FileCloser is implemented by handles that must be released.
type FileCloser interface {
	Close(ctx context.Context) error
}

// Slice is one chunk of a FileHandle. Data is a string (base64 or text),
// []byte, a numeric array, a typed view (BufferView) or any other value.
type Slice struct {
	Index int
	Data  any
}

// BufferView is a typed view over a byte buffer.
type BufferView interface {
	Bytes() []byte
}
