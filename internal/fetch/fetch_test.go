package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawMessage(n int) []byte {
	return []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: me@example.com",
		fmt.Sprintf("Subject: message %d", n),
		"Date: Mon, 02 Jan 2006 15:04:05 +0000",
		"Content-Type: text/plain; charset=utf-8",
		"",
		fmt.Sprintf("body %d", n),
		"",
	}, "\r\n"))
}

// startServer runs an in-memory IMAP server holding count messages for
// me@example.com / secret.
func startServer(t *testing.T, count int) string {
	t.Helper()
	return serve(t, count, imap.CapSet{imap.CapIMAP4rev1: {}, imap.CapIMAP4rev2: {}}, nil,
		func(s imapserver.Session) imapserver.Session { return s })
}

func serve(t *testing.T, count int, caps imap.CapSet, debug io.Writer, wrap func(imapserver.Session) imapserver.Session) string {
	t.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser("me@example.com", "secret")
	_ = user.Create("INBOX", nil)
	for i := 1; i <= count; i++ {
		_, err := user.Append("INBOX", bytes.NewReader(rawMessage(i)), &imap.AppendOptions{})
		require.NoError(t, err)
	}
	mem.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return wrap(mem.NewSession()), nil, nil
		},
		Caps:         caps,
		InsecureAuth: true,
		DebugWriter:  debug,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return ln.Addr().String()
}

// faultySession refuses FETCH for one sequence number, or every SELECT.
type faultySession struct {
	imapserver.Session
	failSeq    uint32
	failSelect bool
}

func (s *faultySession) Select(mailbox string, options *imap.SelectOptions) (*imap.SelectData, error) {
	if s.failSelect {
		return nil, &imap.Error{Type: imap.StatusResponseTypeNo, Text: "mailbox unavailable"}
	}
	return s.Session.Select(mailbox, options)
}

func (s *faultySession) Fetch(w *imapserver.FetchWriter, numSet imap.NumSet, options *imap.FetchOptions) error {
	if s.failSeq != 0 && numSet.String() == strconv.FormatUint(uint64(s.failSeq), 10) {
		return &imap.Error{Type: imap.StatusResponseTypeNo, Text: "message unavailable"}
	}
	return s.Session.Fetch(w, numSet, options)
}

// wireLog records raw server traffic so tests can count client commands.
type wireLog struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *wireLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *wireLog) count(cmd string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Count(l.buf.String(), " "+cmd+"\r\n")
}

func startFaultyServer(t *testing.T, count int, session faultySession) (string, *wireLog) {
	t.Helper()
	log := &wireLog{}
	addr := serve(t, count, imap.CapSet{imap.CapIMAP4rev1: {}}, log,
		func(s imapserver.Session) imapserver.Session {
			fs := session
			fs.Session = s
			return &fs
		})
	return addr, log
}

func newFetcher(addr string) *IMAPFetcher {
	return NewIMAPFetcher(Config{Addr: addr, Security: SecurityInsecure})
}

func TestFetchNewestFirst(t *testing.T) {
	addr := startServer(t, 5)

	msgs, err := newFetcher(addr).Fetch(context.Background(), Credentials{Username: "me@example.com", Password: "secret"}, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Contains(t, string(msgs[0].Raw), "Subject: message 5")
	assert.Contains(t, string(msgs[1].Raw), "Subject: message 4")
	assert.Contains(t, string(msgs[2].Raw), "Subject: message 3")

	seen := map[string]bool{}
	for _, m := range msgs {
		assert.NotEmpty(t, m.ProviderID)
		assert.False(t, seen[m.ProviderID], "provider ids must be unique")
		seen[m.ProviderID] = true
	}
}

func TestFetchStableProviderIDs(t *testing.T) {
	addr := startServer(t, 2)
	creds := Credentials{Username: "me@example.com", Password: "secret"}

	first, err := newFetcher(addr).Fetch(context.Background(), creds, 10)
	require.NoError(t, err)
	second, err := newFetcher(addr).Fetch(context.Background(), creds, 10)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first[0].ProviderID, second[0].ProviderID)
	assert.Equal(t, first[1].ProviderID, second[1].ProviderID)
}

func TestFetchEmptyInbox(t *testing.T) {
	addr := startServer(t, 0)

	msgs, err := newFetcher(addr).Fetch(context.Background(), Credentials{Username: "me@example.com", Password: "secret"}, 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFetchWrongPassword(t *testing.T) {
	addr := startServer(t, 1)

	msgs, err := newFetcher(addr).Fetch(context.Background(), Credentials{Username: "me@example.com", Password: "nope"}, 50)
	assert.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
	assert.Nil(t, msgs)
}

func TestFetchUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = newFetcher(addr).Fetch(context.Background(), Credentials{Username: "a", Password: "b"}, 50)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestFetchSkipsMessageThatFailsAndLogsOut(t *testing.T) {
	addr, log := startFaultyServer(t, 4, faultySession{failSeq: 2})

	msgs, err := newFetcher(addr).Fetch(context.Background(), Credentials{Username: "me@example.com", Password: "secret"}, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Contains(t, string(msgs[0].Raw), "Subject: message 4")
	assert.Contains(t, string(msgs[1].Raw), "Subject: message 3")
	assert.Contains(t, string(msgs[2].Raw), "Subject: message 1")
	assert.Equal(t, 1, log.count("LOGOUT"))
}

func TestFetchLogsOutWhenSelectFails(t *testing.T) {
	addr, log := startFaultyServer(t, 2, faultySession{failSelect: true})

	msgs, err := newFetcher(addr).Fetch(context.Background(), Credentials{Username: "me@example.com", Password: "secret"}, 10)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuthentication), "select failure is not an auth failure")
	assert.Nil(t, msgs)
	assert.Equal(t, 1, log.count("LOGOUT"))
}
