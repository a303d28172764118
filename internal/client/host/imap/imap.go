// Package imap loads the "current" mail item from an IMAP mailbox.
package imap

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dmitrijs2005/ledgermail/internal/client/host"
	"github.com/dmitrijs2005/ledgermail/internal/logging"
)

// Config addresses one message on an IMAP server.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Mailbox  string
	UID      uint32
}

// session is the part of *imapclient.Client used here.
type session interface {
	Login(username, password string) *imapclient.Command
	Select(mailbox string, options *imap.SelectOptions) *imapclient.SelectCommand
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) *imapclient.FetchCommand
	Logout() *imapclient.Command
}

// dial opens the connection. Tests replace it.
var dial = func(addr string, useTLS bool) (session, error) {
	if useTLS {
		return imapclient.DialTLS(addr, nil)
	}
	return imapclient.DialStartTLS(addr, nil)
}

// fetchBody reads BODY.PEEK[] of one UID. Tests replace it.
var fetchBody = func(s session, uid uint32) ([]byte, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	cmd := s.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer cmd.Close()

	msg := cmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}
	raw := buf.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}
	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch: %w", err)
	}
	return raw, nil
}

// Loader fetches a message and turns it into a host item.
type Loader struct {
	cfg    Config
	logger logging.Logger
}

func NewLoader(cfg Config, logger logging.Logger) *Loader {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Loader{cfg: cfg, logger: logger}
}

func (l *Loader) addr() string {
	port := l.cfg.Port
	if port == 0 {
		port = 993
		if !l.cfg.TLS {
			port = 143
		}
	}
	return net.JoinHostPort(l.cfg.Host, strconv.Itoa(port))
}

// Fetch returns the raw RFC 822 bytes of the configured UID.
func (l *Loader) Fetch(ctx context.Context) ([]byte, error) {
	if l.cfg.Host == "" {
		return nil, fmt.Errorf("imap host is not configured")
	}
	if l.cfg.UID == 0 {
		return nil, fmt.Errorf("imap message uid is not configured")
	}

	addr := l.addr()
	c, err := dial(addr, l.cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	defer func() { _ = c.Logout().Wait() }()

	if err := c.Login(l.cfg.Username, l.cfg.Password).Wait(); err != nil {
		return nil, fmt.Errorf("authentication failed for %s: %w", l.cfg.Username, err)
	}
	if _, err := c.Select(l.cfg.Mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", l.cfg.Mailbox, err)
	}

	raw, err := fetchBody(c, l.cfg.UID)
	if err != nil {
		return nil, err
	}
	l.logger.Info(ctx, "fetched message", "mailbox", l.cfg.Mailbox, "uid", l.cfg.UID, "bytes", len(raw))
	return raw, nil
}

// Load fetches and parses the configured message.
func (l *Loader) Load(ctx context.Context, sliceSize int) (*host.Message, error) {
	raw, err := l.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return host.Parse(raw, sliceSize)
}
