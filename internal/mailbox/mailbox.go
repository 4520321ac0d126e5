// Package mailbox polls an IMAP inbox for literature-alert messages and
// turns them into discovery input.
package mailbox

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/jmswen/paperdigest/internal/discover"
)

// Config describes the inbox to poll. Credentials are referenced by
// environment variable name, resolved at fetch time.
type Config struct {
	Server   string // host:port, implicit TLS
	UserEnv  string
	PassEnv  string
	Lookback time.Duration
	Subjects []string // subject keywords that mark a message as an alert
}

// Source polls the inbox. It implements discover.MessageSource.
type Source struct {
	cfg Config
}

func New(cfg Config) *Source {
	if cfg.Lookback == 0 {
		cfg.Lookback = 24 * time.Hour
	}
	return &Source{cfg: cfg}
}

func (s *Source) Name() string { return "mailbox" }

// Fetch logs in, searches the lookback window, and returns the bodies of
// matching alert messages. The connection lives for one poll only.
func (s *Source) Fetch() ([]discover.Message, error) {
	user := os.Getenv(s.cfg.UserEnv)
	pass := os.Getenv(s.cfg.PassEnv)
	if user == "" || pass == "" {
		return nil, fmt.Errorf("imap credentials not set (%s, %s)", s.cfg.UserEnv, s.cfg.PassEnv)
	}

	c, err := client.DialTLS(s.cfg.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", s.cfg.Server, err)
	}
	defer c.Logout()

	if err := c.Login(user, pass); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("selecting inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().Add(-s.cfg.Lookback)
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var out []discover.Message
	for msg := range messages {
		subject := ""
		if msg.Envelope != nil {
			subject = msg.Envelope.Subject
		}
		if !s.subjectMatches(subject) {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		text, urls, err := extractBody(body)
		if err != nil {
			log.Printf("mailbox: skipping unreadable message %q: %v", subject, err)
			continue
		}
		out = append(out, discover.Message{
			Text: subject + "\n" + text,
			URLs: urls,
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	log.Printf("mailbox: %d of %d recent messages matched", len(out), len(ids))
	return out, nil
}

// subjectMatches filters on the configured alert keywords. An empty
// keyword list accepts everything.
func (s *Source) subjectMatches(subject string) bool {
	if len(s.cfg.Subjects) == 0 {
		return true
	}
	lower := strings.ToLower(subject)
	for _, kw := range s.cfg.Subjects {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
