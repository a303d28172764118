package mail

import (
	"context"
	"errors"
	"time"
)

type fakeMailbox struct{ item Item }

func (m *fakeMailbox) Item() Item { return m.item }

// fakeItem has no capabilities; wrap it to add them.
type fakeItem struct {
	subject     string
	from        string
	created     time.Time
	attachments []AttachmentDetails
}

func (i *fakeItem) ItemID() string                   { return "AAMk-1" }
func (i *fakeItem) ItemType() string                 { return "message" }
func (i *fakeItem) Subject() string                  { return i.subject }
func (i *fakeItem) From() string                     { return i.from }
func (i *fakeItem) To() []string                     { return nil }
func (i *fakeItem) Cc() []string                     { return nil }
func (i *fakeItem) DateTimeCreated() time.Time       { return i.created }
func (i *fakeItem) Attachments() []AttachmentDetails { return i.attachments }

type fullItem struct {
	*fakeItem
	file       any
	fileErr    error
	contents   map[string]AttachmentContent
	contentErr error
	asked      []string
}

func (i *fullItem) GetAsFile(ctx context.Context) (any, error) { return i.file, i.fileErr }

func (i *fullItem) GetAttachmentContent(ctx context.Context, id string) (AttachmentContent, error) {
	i.asked = append(i.asked, id)
	if i.contentErr != nil {
		return AttachmentContent{}, i.contentErr
	}
	c, ok := i.contents[id]
	if !ok {
		return AttachmentContent{}, errors.New("no such attachment")
	}
	return c, nil
}

type fakeHandle struct {
	props  FileProperties
	slices []any
	failAt int
	reads  []int
	closed int
}

func (h *fakeHandle) Properties() FileProperties { return h.props }

func (h *fakeHandle) GetSlice(ctx context.Context, index int) (Slice, error) {
	h.reads = append(h.reads, index)
	if h.failAt >= 0 && index == h.failAt {
		return Slice{}, errors.New("getSliceAsync failed")
	}
	return Slice{Index: index, Data: h.slices[index]}, nil
}

type closingHandle struct{ *fakeHandle }

func (h closingHandle) Close(ctx context.Context) error {
	h.closed++
	return nil
}

type view struct{ b []byte }

func (v view) Bytes() []byte { return v.b }
