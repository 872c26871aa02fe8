// Package mail is the IMAP side of the email handlers.
package mail

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

type Message struct {
	UID     uint32    `json:"uid"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
}

type Mailbox interface {
	// Latest returns up to limit of the newest messages in folder, newest
	// first.
	Latest(folder string, limit int) ([]Message, error)
	Move(folder string, uids []uint32, dest string) error
	EnsureFolder(name string) error
	Close() error
}

type Config struct {
	Server   string
	Port     int
	Email    string
	Password string
}

type IMAPMailbox struct {
	c      *client.Client
	logger *zap.Logger
}

// Dial connects over TLS and logs in.
func Dial(cfg Config, logger *zap.Logger) (*IMAPMailbox, error) {
	if cfg.Server == "" || cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("missing IMAP configuration: server, email and password are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
	logger.Info("connecting to IMAP server", zap.String("addr", addr), zap.String("email", cfg.Email))

	c, err := client.DialTLS(addr, &tls.Config{ServerName: cfg.Server})
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", addr, err)
	}
	if err := c.Login(cfg.Email, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}
	return &IMAPMailbox{c: c, logger: logger}, nil
}

func (m *IMAPMailbox) Latest(folder string, limit int) ([]Message, error) {
	mbox, err := m.c.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("error selecting %s: %w", folder, err)
	}
	if mbox.Messages == 0 || limit <= 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- m.c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, ch)
	}()

	var messages []Message
	for msg := range ch {
		messages = append(messages, toMessage(msg))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (m *IMAPMailbox) Move(folder string, uids []uint32, dest string) error {
	if len(uids) == 0 {
		return nil
	}
	if _, err := m.c.Select(folder, false); err != nil {
		return fmt.Errorf("error selecting %s: %w", folder, err)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	if err := m.c.UidMove(seqset, dest); err != nil {
		return fmt.Errorf("error moving messages to %s: %w", dest, err)
	}
	return nil
}

func (m *IMAPMailbox) EnsureFolder(name string) error {
	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- m.c.List("", name, ch)
	}()
	found := false
	for range ch {
		found = true
	}
	if err := <-done; err != nil {
		return fmt.Errorf("error listing %s: %w", name, err)
	}
	if found {
		return nil
	}
	m.logger.Info("creating folder", zap.String("folder", name))
	if err := m.c.Create(name); err != nil {
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	return nil
}

func (m *IMAPMailbox) Close() error {
	return m.c.Logout()
}

func toMessage(msg *imap.Message) Message {
	out := Message{UID: msg.Uid}
	if msg.Envelope == nil {
		return out
	}
	out.Subject = msg.Envelope.Subject
	out.Date = msg.Envelope.Date
	if len(msg.Envelope.From) > 0 {
		out.From = FormatAddress(msg.Envelope.From[0].PersonalName, msg.Envelope.From[0].Address())
	}
	return out
}

// FormatAddress renders "Name <addr>" or just addr.
func FormatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
