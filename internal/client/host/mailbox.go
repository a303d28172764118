package host

import (
	"sync"

	"github.com/dmitrijs2005/ledgermail/internal/client/mail"
)

// Mailbox holds the currently open message. It is empty until Open is called.
type Mailbox struct {
	mu  sync.RWMutex
	msg *Message
}

var _ mail.Mailbox = (*Mailbox)(nil)

func NewMailbox(msg *Message) *Mailbox {
	return &Mailbox{msg: msg}
}

// Item returns the open message or nil.
func (b *Mailbox) Item() mail.Item {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.msg == nil {
		return nil
	}
	return b.msg
}

// Open replaces the open message; nil closes it.
func (b *Mailbox) Open(msg *Message) {
	b.mu.Lock()
	b.msg = msg
	b.mu.Unlock()
}
