package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "fxjournal-backend/internal/auth/domain"
	tradedomain "fxjournal-backend/internal/trade/domain"
	"fxjournal-backend/pkg/gmail"
	"fxjournal-backend/pkg/imap"
	"fxjournal-backend/pkg/logger"
	"fxjournal-backend/pkg/secret"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// GmailClient is the part of pkg/gmail the mail sources use.
type GmailClient interface {
	FetchTradeEmails(ctx context.Context, accessToken, refreshToken, query string, limit int, onTokenRefresh gmail.TokenUpdateFunc) ([]*tradedomain.RawEmail, error)
	Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh gmail.TokenUpdateFunc) (uint64, error)
}

// UserUpdater persists refreshed OAuth tokens.
type UserUpdater interface {
	Update(user *authdomain.User) error
}

// GmailSource reads a user's Gmail through the API and can register push watches.
type GmailSource struct {
	client GmailClient
	users  UserUpdater
	query  string
	topic  string
	log    *zap.Logger
}

func NewGmailSource(client GmailClient, users UserUpdater, query, topic string, log *zap.Logger) *GmailSource {
	return &GmailSource{
		client: client,
		users:  users,
		query:  query,
		topic:  topic,
		log:    logger.OrNop(log),
	}
}

// makeTokenUpdateCallback keeps the stored tokens current when the client refreshes them
func (s *GmailSource) makeTokenUpdateCallback(user *authdomain.User) gmail.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		user.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			user.RefreshToken = token.RefreshToken
		}
		user.TokenExpiry = token.Expiry
		if err := s.users.Update(user); err != nil {
			return err
		}
		s.log.Debug("gmail token refreshed", zap.String("user_id", user.ID))
		return nil
	}
}

func (s *GmailSource) FetchTradeEmails(ctx context.Context, user *authdomain.User, limit int) ([]*tradedomain.RawEmail, error) {
	return s.client.FetchTradeEmails(ctx, user.AccessToken, user.RefreshToken, s.query, limit, s.makeTokenUpdateCallback(user))
}

func (s *GmailSource) WatchMailbox(ctx context.Context, user *authdomain.User) (uint64, error) {
	if s.topic == "" {
		return 0, errors.New("pub/sub topic is not configured")
	}
	return s.client.Watch(ctx, user.AccessToken, user.RefreshToken, s.topic, s.makeTokenUpdateCallback(user))
}

// IMAPClient is the part of pkg/imap the mail sources use.
type IMAPClient interface {
	FetchTradeEmails(ctx context.Context, acct imap.Account, limit int) ([]*tradedomain.RawEmail, error)
}

// IMAPSource reads a generic IMAP mailbox with the user's sealed credentials.
type IMAPSource struct {
	client IMAPClient
	box    *secret.Box
}

func NewIMAPSource(client IMAPClient, box *secret.Box) *IMAPSource {
	return &IMAPSource{client: client, box: box}
}

func (s *IMAPSource) FetchTradeEmails(ctx context.Context, user *authdomain.User, limit int) ([]*tradedomain.RawEmail, error) {
	if s.box == nil {
		return nil, errors.New("imap credentials cannot be opened without SECRET_KEY")
	}
	password, err := s.box.Open(user.ImapPassword)
	if err != nil {
		return nil, fmt.Errorf("open imap credentials: %w", err)
	}
	return s.client.FetchTradeEmails(ctx, imap.Account{
		Server:   user.ImapServer,
		Port:     user.ImapPort,
		Username: user.ImapUsername,
		Password: password,
	}, limit)
}

// DemoSource serves a fixed mailbox of sample confirmations, one per supported format.
type DemoSource struct{}

func NewDemoSource() *DemoSource {
	return &DemoSource{}
}

var demoReceived = time.Date(2024, 3, 15, 1, 30, 0, 0, time.UTC)

var demoEmails = []tradedomain.RawEmail{
	{
		MessageID: "demo-gmo-execution",
		From:      "info@click-sec.com",
		FromName:  "GMOクリック証券",
		Subject:   "【GMOクリック証券】約定のお知らせ",
		Body: "約定日時：2024/03/15(金) 10:23:45\n" +
			"通貨ペア：米ドル／円\n" +
			"売買：買\n" +
			"取引数量：10万通貨\n" +
			"約定価格：150.123\n",
	},
	{
		MessageID: "demo-html-order",
		From:      "noreply@oanda.com",
		FromName:  "OANDA",
		Subject:   "Order Filled",
		IsHTML:    true,
		Body: "<html><body><table>" +
			"<tr><td>Symbol</td><td>EUR/USD</td></tr>" +
			"<tr><td>Side</td><td>Sell</td></tr>" +
			"<tr><td>Volume</td><td>0.5 lots</td></tr>" +
			"<tr><td>Price</td><td>1.08550</td></tr>" +
			"<tr><td>Stop Loss</td><td>1.09000</td></tr>" +
			"<tr><td>Take Profit</td><td>1.08000</td></tr>" +
			"<tr><td>Time</td><td>2024-03-15T14:30:00Z</td></tr>" +
			"</table></body></html>",
	},
	{
		MessageID: "demo-gmo-settlement",
		From:      "info@click-sec.com",
		FromName:  "GMOクリック証券",
		Subject:   "決済約定のお知らせ",
		Body: "通貨ペア: ユーロ/円\n" +
			"売買: 売\n" +
			"数量: 3Lot\n" +
			"約定価格: 162.50\n" +
			"決済損益: ▲12,300円\n" +
			"約定日時: 2024/03/15 18:05\n",
	},
	{
		MessageID: "demo-newsletter",
		From:      "news@example.com",
		Subject:   "Weekly market outlook",
		Body:      "Markets were mixed this week. No orders were placed.",
	},
}

// FetchTradeEmails returns copies so callers may mutate them.
func (s *DemoSource) FetchTradeEmails(_ context.Context, _ *authdomain.User, limit int) ([]*tradedomain.RawEmail, error) {
	n := len(demoEmails)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*tradedomain.RawEmail, 0, n)
	for i := 0; i < n; i++ {
		email := demoEmails[i]
		email.ReceivedAt = demoReceived
		out = append(out, &email)
	}
	return out, nil
}
