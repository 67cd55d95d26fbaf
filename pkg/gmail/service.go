package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	tradedomain "fxjournal-backend/internal/trade/domain"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error

// MaxPageSize is the Gmail API limit for messages.list
const MaxPageSize = 500

type Service struct {
	clientID     string
	clientSecret string
	timeout      time.Duration
	log          *zap.Logger
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
	log      *zap.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			s.log.Warn("failed to persist refreshed gmail token", zap.Error(err))
		}
	}
	return t, nil
}

// NewService creates a Gmail client factory. Every API call made through it is
// bounded by timeout.
func NewService(clientID, clientSecret string, timeout time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		timeout:      timeout,
		log:          log,
	}
}

// GetGmailService creates Gmail service with user's access token
func (s *Service) GetGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
		log:      s.log,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// FetchTradeEmails lists up to limit messages matching query, newest first, and
// downloads each one. Messages that fail to download are skipped.
func (s *Service) FetchTradeEmails(ctx context.Context, accessToken, refreshToken, query string, limit int, onTokenRefresh TokenUpdateFunc) ([]*tradedomain.RawEmail, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	listCtx, cancel := s.callContext(ctx)
	listQuery := srv.Users.Messages.List("me").MaxResults(int64(limit))
	if query != "" {
		listQuery = listQuery.Q(query)
	}
	resp, err := listQuery.Context(listCtx).Do()
	cancel()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %v", err)
	}

	emails := make([]*tradedomain.RawEmail, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		if err := ctx.Err(); err != nil {
			return emails, err
		}

		getCtx, cancel := s.callContext(ctx)
		msg, err := srv.Users.Messages.Get("me", ref.Id).Format("full").Context(getCtx).Do()
		cancel()
		if err != nil {
			s.log.Warn("skipping gmail message", zap.String("message_id", ref.Id), zap.Error(err))
			continue
		}
		emails = append(emails, convertGmailMessage(msg))
	}

	return emails, nil
}

// Watch sets up push notifications for the user's inbox and returns the
// history id the watch starts from.
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken string, topicName string, onTokenRefresh TokenUpdateFunc) (uint64, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return 0, err
	}

	// Gmail allows a single watch per user; clear any previous one.
	stopCtx, cancel := s.callContext(ctx)
	_ = srv.Users.Stop("me").Context(stopCtx).Do()
	cancel()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	watchCtx, cancel := s.callContext(ctx)
	defer cancel()
	resp, err := srv.Users.Watch("me", req).Context(watchCtx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %v", err)
	}
	s.log.Info("gmail watch started",
		zap.String("topic", topicName),
		zap.Int64("expiration", resp.Expiration),
		zap.Uint64("history_id", resp.HistoryId),
	)

	return resp.HistoryId, nil
}

// Stop stops push notifications for the user's mailbox
func (s *Service) Stop(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if err := srv.Users.Stop("me").Context(callCtx).Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %v", err)
	}

	return nil
}

// ValidateToken validates the access token by fetching the profile and
// returns the mailbox address.
func (s *Service) ValidateToken(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	profile, err := srv.Users.GetProfile("me").Context(callCtx).Do()
	if err != nil {
		return "", errors.New("invalid or expired access token")
	}

	return profile.EmailAddress, nil
}

func convertGmailMessage(msg *gmail.Message) *tradedomain.RawEmail {
	email := &tradedomain.RawEmail{
		MessageID:  msg.Id,
		Snippet:    msg.Snippet,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		email.Body = msg.Snippet
		return email
	}

	from := getHeader(msg.Payload.Headers, "From")
	email.From, email.FromName = splitFrom(from)
	email.To = getHeader(msg.Payload.Headers, "To")
	email.Subject = getHeader(msg.Payload.Headers, "Subject")
	email.Body, email.IsHTML = getEmailBody(msg.Payload)

	return email
}

// splitFrom separates "Name <addr@example.com>" into address and name.
func splitFrom(from string) (string, string) {
	from = strings.TrimSpace(from)
	open := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if open < 0 || end < open {
		return from, ""
	}
	name := strings.Trim(strings.TrimSpace(from[:open]), `"`)
	return strings.TrimSpace(from[open+1 : end]), name
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// getEmailBody prefers the plain-text part; broker confirmations usually carry one
// and it parses more reliably than the HTML alternative.
func getEmailBody(payload *gmail.MessagePart) (string, bool) {
	if payload.Body != nil && payload.Body.Data != "" {
		if data, err := decodePart(payload.Body.Data); err == nil {
			return data, payload.MimeType == "text/html"
		}
	}

	var htmlBody, plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
				switch part.MimeType {
				case "text/plain":
					if plainBody == "" {
						plainBody, _ = decodePart(part.Body.Data)
					}
				case "text/html":
					if htmlBody == "" {
						htmlBody, _ = decodePart(part.Body.Data)
					}
				}
			}
			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}
	findBody(payload.Parts)

	if strings.TrimSpace(plainBody) != "" {
		return plainBody, false
	}
	return htmlBody, htmlBody != ""
}

func decodePart(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}
