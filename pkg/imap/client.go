// Package imap reads broker confirmation emails from a generic IMAP mailbox.
package imap

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	tradedomain "fxjournal-backend/internal/trade/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// DefaultKeywords match subjects and bodies of typical execution notices.
var DefaultKeywords = []string{"約定", "決済", "注文", "Order", "Trade", "Execution", "Confirmation", "Filled"}

// Account identifies one mailbox.
type Account struct {
	Server   string
	Port     int
	Username string
	Password string
}

func (a Account) addr() string {
	port := a.Port
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(a.Server, strconv.Itoa(port))
}

type Client struct {
	timeout  time.Duration
	keywords []string
	lookback time.Duration
	log      *zap.Logger
}

// NewClient builds an IMAP reader. timeout bounds the dial and every command.
func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		timeout:  timeout,
		keywords: DefaultKeywords,
		lookback: 30 * 24 * time.Hour,
		log:      log,
	}
}

func (c *Client) dial(ctx context.Context, acct Account) (*client.Client, func(), error) {
	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := client.DialWithDialerTLS(dialer, acct.addr(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", acct.addr(), err)
	}
	conn.Timeout = c.timeout

	// go-imap has no context support; tear the connection down on cancel.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Terminate()
		case <-done:
		}
	}()
	closeFn := func() {
		close(done)
		_ = conn.Logout()
	}

	if err := conn.Login(acct.Username, acct.Password); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("login: %w", err)
	}
	return conn, closeFn, nil
}

// CheckLogin verifies the credentials and that INBOX can be opened.
func (c *Client) CheckLogin(ctx context.Context, acct Account) error {
	conn, closeFn, err := c.dial(ctx, acct)
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := conn.Select("INBOX", true); err != nil {
		return fmt.Errorf("select INBOX: %w", err)
	}
	return nil
}

// FetchTradeEmails returns up to limit recent INBOX messages mentioning a trade
// keyword, newest first.
func (c *Client) FetchTradeEmails(ctx context.Context, acct Account, limit int) ([]*tradedomain.RawEmail, error) {
	conn, closeFn, err := c.dial(ctx, acct)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	mbox, err := conn.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("select INBOX: %w", err)
	}

	criteria := searchCriteria(c.keywords, time.Now().Add(-c.lookback))
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	uids = newest(uids, limit)
	if len(uids) == 0 {
		return []*tradedomain.RawEmail{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqset, items, messages)
	}()

	emails := make([]*tradedomain.RawEmail, 0, len(uids))
	for msg := range messages {
		email, err := convertMessage(msg, section, mbox.UidValidity)
		if err != nil {
			c.log.Warn("skipping imap message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		emails = append(emails, email)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
	})
	return emails, nil
}

// searchCriteria builds "SINCE d (OR TEXT k1 (OR TEXT k2 ...))".
func searchCriteria(keywords []string, since time.Time) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	if kw := keywordCriteria(keywords); kw != nil {
		criteria.Or = kw.Or
		criteria.Text = kw.Text
	}
	return criteria
}

func keywordCriteria(keywords []string) *imap.SearchCriteria {
	switch len(keywords) {
	case 0:
		return nil
	case 1:
		c := imap.NewSearchCriteria()
		c.Text = []string{keywords[0]}
		return c
	}
	head := imap.NewSearchCriteria()
	head.Text = []string{keywords[0]}
	c := imap.NewSearchCriteria()
	c.Or = [][2]*imap.SearchCriteria{{head, keywordCriteria(keywords[1:])}}
	return c
}

func newest(uids []uint32, limit int) []uint32 {
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	return uids
}

func convertMessage(msg *imap.Message, section *imap.BodySectionName, uidValidity uint32) (*tradedomain.RawEmail, error) {
	email := &tradedomain.RawEmail{ReceivedAt: msg.InternalDate}
	if env := msg.Envelope; env != nil {
		email.Subject = env.Subject
		email.MessageID = strings.Trim(env.MessageId, "<> ")
		if len(env.From) > 0 {
			email.From = env.From[0].Address()
			email.FromName = env.From[0].PersonalName
		}
		if len(env.To) > 0 {
			email.To = env.To[0].Address()
		}
		if email.ReceivedAt.IsZero() {
			email.ReceivedAt = env.Date
		}
	}
	if email.MessageID == "" {
		email.MessageID = fmt.Sprintf("imap:%d:%d", uidValidity, msg.Uid)
	}

	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("message %d has no body", msg.Uid)
	}
	body, isHTML, err := readBody(r)
	if err != nil {
		return nil, err
	}
	email.Body = body
	email.IsHTML = isHTML
	return email, nil
}

// readBody walks a MIME message and returns its text, preferring text/plain.
// Transfer encodings and legacy charsets (ISO-2022-JP, Shift_JIS) are decoded.
func readBody(r io.Reader) (string, bool, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", false, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if plain != "" || html != "" {
				break
			}
			return "", false, fmt.Errorf("read part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		switch {
		case contentType == "text/html" && html == "":
			html = string(b)
		case (contentType == "text/plain" || contentType == "") && plain == "":
			plain = string(b)
		}
	}

	if strings.TrimSpace(plain) != "" {
		return plain, false, nil
	}
	return html, html != "", nil
}
