// Package fetch pulls the newest messages out of a user's IMAP inbox.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/znz-systems/triage/internal/metrics"
)

// DefaultMaxMessages is how many of the newest inbox messages a sync inspects.
const DefaultMaxMessages = 50

// ErrAuthentication means the server could not be reached or refused the login.
// Nothing was fetched.
var ErrAuthentication = errors.New("imap authentication failed")

// Security selects how the connection to the IMAP server is secured.
type Security string

const (
	SecurityTLS      Security = "tls"
	SecurityStartTLS Security = "starttls"
	SecurityInsecure Security = "insecure"
)

type Credentials struct {
	Username string
	Password string
}

// RawMessage is one message as the server returned it. ProviderID is the
// message UID, stable for the lifetime of the mailbox.
type RawMessage struct {
	ProviderID string
	Raw        []byte
}

type Config struct {
	Addr      string
	Security  Security
	Mailbox   string
	TLSConfig *tls.Config
}

type IMAPFetcher struct {
	cfg Config
}

func NewIMAPFetcher(cfg Config) *IMAPFetcher {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Security == "" {
		cfg.Security = SecurityTLS
	}
	return &IMAPFetcher{cfg: cfg}
}

// Fetch logs in, selects the inbox read-only and returns up to max of the
// newest messages, newest first. A message that cannot be fetched is logged
// and left out. The session is closed on every return path.
func (f *IMAPFetcher) Fetch(ctx context.Context, creds Credentials, max int) ([]RawMessage, error) {
	if max <= 0 {
		max = DefaultMaxMessages
	}

	c, err := f.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", ErrAuthentication, f.cfg.Addr, err)
	}
	defer c.Close()

	// The client has no context support; closing the connection unblocks any
	// pending command.
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	if err := c.Login(creds.Username, creds.Password).Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	defer func() {
		if err := c.Logout().Wait(); err != nil && ctx.Err() == nil {
			slog.Debug("imap logout failed", "error", err)
		}
	}()

	sel, err := c.Select(f.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", f.cfg.Mailbox, err)
	}
	if sel.NumMessages == 0 {
		return nil, nil
	}

	first := uint32(1)
	if sel.NumMessages > uint32(max) {
		first = sel.NumMessages - uint32(max) + 1
	}

	section := &imap.FetchItemBodySection{Peek: true}
	opts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	out := make([]RawMessage, 0, sel.NumMessages-first+1)
	for seq := sel.NumMessages; seq >= first; seq-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bufs, err := c.Fetch(imap.SeqSetNum(seq), opts).Collect()
		if err != nil || len(bufs) == 0 || bufs[0].UID == 0 {
			slog.Warn("skipping message that could not be fetched", "seq", seq, "error", err)
			metrics.MessagesSkipped.WithLabelValues(metrics.SkipFetch).Inc()
			continue
		}

		id := strconv.FormatUint(uint64(bufs[0].UID), 10)
		raw := bufs[0].FindBodySection(section)
		if len(raw) == 0 {
			slog.Warn("skipping message with empty body", "provider_id", id)
			metrics.MessagesSkipped.WithLabelValues(metrics.SkipFetch).Inc()
			continue
		}

		out = append(out, RawMessage{ProviderID: id, Raw: raw})
	}

	return out, nil
}

func (f *IMAPFetcher) dial() (*imapclient.Client, error) {
	opts := &imapclient.Options{TLSConfig: f.cfg.TLSConfig}
	switch f.cfg.Security {
	case SecurityTLS:
		return imapclient.DialTLS(f.cfg.Addr, opts)
	case SecurityStartTLS:
		return imapclient.DialStartTLS(f.cfg.Addr, opts)
	case SecurityInsecure:
		return imapclient.DialInsecure(f.cfg.Addr, opts)
	default:
		return nil, fmt.Errorf("unknown imap security mode %q", f.cfg.Security)
	}
}
