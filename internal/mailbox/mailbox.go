package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Message is a minimal representation of one mailbox message.
type Message struct {
	UID     uint32
	Folder  string
	From    string
	Subject string
	Date    time.Time
	Body    string // decoded text, html stripped when no plain part exists
}

// Mailbox is the capability surface the executor and classifier depend on.
// Verification and reply emails can land outside INBOX, so searches always
// take an explicit folder.
type Mailbox interface {
	Search(ctx context.Context, folder string, since time.Time, unseenOnly bool) ([]Message, error)
	Close() error
}

// Client is an IMAP-backed Mailbox.
type Client struct {
	c    *imapclient.Client
	done chan struct{}
	once sync.Once
}

// Connect dials the IMAP server over TLS and logs in.
func Connect(ctx context.Context, addr, username, password string) (*Client, error) {
	if addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("imap username/password is required")
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	client := &Client{c: c, done: make(chan struct{})}

	// best-effort close on context cancel; Close releases the watcher so
	// short-lived connections under a long-lived context don't pile up
	go client.watch(ctx)

	if err := c.Login(username, password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	return client, nil
}

func (m *Client) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = m.Close()
	case <-m.done:
	}
}

// Search selects folder and returns matching messages, newest first, with
// bodies fetched via BODY.PEEK[] so nothing gets marked \Seen.
func (m *Client) Search(ctx context.Context, folder string, since time.Time, unseenOnly bool) ([]Message, error) {
	if m == nil || m.c == nil {
		return nil, errors.New("imap client is nil")
	}

	if _, err := m.c.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{Since: since}
	if unseenOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	searchData, err := m.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search %s: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// newest first
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := m.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	var out []Message
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}

		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		msg := Message{UID: uint32(buf.UID), Folder: folder}
		if buf.Envelope != nil {
			msg.Subject = buf.Envelope.Subject
			msg.Date = buf.Envelope.Date
			msg.From = joinAddrs(buf.Envelope.From)
		}
		if msg.Date.IsZero() {
			msg.Date = buf.InternalDate
		}

		if raw := buf.FindBodySection(bodyAll); len(raw) > 0 {
			msg.Body = extractText(raw)
		}

		out = append(out, msg)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func (m *Client) Close() error {
	if m == nil {
		return nil
	}
	if m.done != nil {
		m.once.Do(func() { close(m.done) })
	}
	if m.c == nil {
		return nil
	}
	return m.c.Close()
}

func joinAddrs(addrs []imap.Address) string {
	out := ""
	for _, a := range addrs {
		s := a.Addr()
		if s == "" && a.Name != "" {
			s = a.Name
		}
		if s == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += s
	}
	return out
}
