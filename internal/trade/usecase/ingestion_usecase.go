package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	authdomain "fxjournal-backend/internal/auth/domain"
	tradedomain "fxjournal-backend/internal/trade/domain"
	tradedto "fxjournal-backend/internal/trade/dto"
	"fxjournal-backend/internal/trade/parser"
	"fxjournal-backend/internal/trade/repository"
	"fxjournal-backend/pkg/logger"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Outcome is the terminal state of one email in an ingestion run.
type Outcome string

const (
	OutcomeParseFailed Outcome = "parse_failed"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomePersisted   Outcome = "persisted"
	OutcomeFailed      Outcome = "failed"
)

// Summary counts the outcomes of one ingestion run.
type Summary struct {
	Created    int
	Duplicates int
	Skipped    int
	Failed     int
	Trades     []*tradedomain.Trade
}

// IngestionOptions are fixed at construction.
type IngestionOptions struct {
	// DemoMode makes pull sync read the built-in demo mailbox instead of the user's.
	DemoMode      bool
	PageSize      int
	WebhookSecret string
	AliasPrefix   string
}

// MailSources holds one source per mailbox kind; nil entries are unavailable.
type MailSources struct {
	Gmail MailSource
	IMAP  MailSource
	Demo  MailSource
}

type IngestionDeps struct {
	Trades     repository.TradeRepository
	Ingestions repository.IngestionRepository
	Users      UserLookup
	Extractor  *parser.Extractor
	Sources    MailSources
	Watcher    MailWatcher
	Notifier   Notifier
	Logger     *zap.Logger
}

const (
	aliasCacheTTL    = 10 * time.Minute
	defaultPageSize  = 50
	forwardKeyPrefix = "fwd:"
)

// ingestionUsecase implements IngestionUsecase interface
type ingestionUsecase struct {
	trades     repository.TradeRepository
	ingestions repository.IngestionRepository
	users      UserLookup
	extractor  *parser.Extractor
	sources    MailSources
	watcher    MailWatcher
	notifier   Notifier
	aliases    *cache.Cache
	opts       IngestionOptions
	log        *zap.Logger
}

// NewIngestionUsecase creates a new instance of ingestionUsecase
func NewIngestionUsecase(deps IngestionDeps, opts IngestionOptions) IngestionUsecase {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = parser.NewExtractor(nil)
	}
	return &ingestionUsecase{
		trades:     deps.Trades,
		ingestions: deps.Ingestions,
		users:      deps.Users,
		extractor:  extractor,
		sources:    deps.Sources,
		watcher:    deps.Watcher,
		notifier:   deps.Notifier,
		aliases:    cache.New(aliasCacheTTL, 2*aliasCacheTTL),
		opts:       opts,
		log:        logger.OrNop(deps.Logger),
	}
}

func (u *ingestionUsecase) IngestEmails(ctx context.Context, userID string, channel tradedomain.Channel, emails []*tradedomain.RawEmail) (*Summary, error) {
	summary := &Summary{Trades: make([]*tradedomain.Trade, 0)}
	attempts := 0
	var lastErr error

	for _, email := range emails {
		if email == nil {
			continue
		}
		outcome, trade, err := u.ingestOne(userID, channel, email)
		switch outcome {
		case OutcomeParseFailed:
			summary.Skipped++
		case OutcomeDuplicate:
			summary.Duplicates++
		case OutcomePersisted:
			attempts++
			summary.Created++
			summary.Trades = append(summary.Trades, trade)
		case OutcomeFailed:
			attempts++
			summary.Failed++
			lastErr = err
		}
	}

	u.log.Info("ingestion run finished",
		zap.String("user_id", userID),
		zap.String("channel", string(channel)),
		zap.Int("emails", len(emails)),
		zap.Int("created", summary.Created),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)

	u.notify(ctx, userID, summary.Trades)

	if attempts > 0 && summary.Failed == attempts {
		return summary, fmt.Errorf("%w: %v", ErrImportFailed, lastErr)
	}
	return summary, nil
}

// ingestOne moves a single email through Received -> Parsed -> New -> Persisted,
// stopping at ParseFailed or Duplicate.
func (u *ingestionUsecase) ingestOne(userID string, channel tradedomain.Channel, email *tradedomain.RawEmail) (Outcome, *tradedomain.Trade, error) {
	key := email.MessageID
	if key == "" {
		key = forwardKey(email.From, email.Subject, email.Body)
	}
	log := u.log.With(zap.String("user_id", userID), zap.String("message_id", key))

	parsed, ok := u.extractor.ExtractEmail(email)
	if !ok {
		log.Debug("email skipped, no trade found", zap.String("subject", email.Subject))
		return OutcomeParseFailed, nil, nil
	}

	exists, err := u.ingestions.ExistsForMessage(userID, key)
	if err != nil {
		// the unique index still guards the insert below
		log.Warn("ingestion lookup failed", zap.Error(err))
	} else if exists {
		log.Debug("email already imported")
		return OutcomeDuplicate, nil, nil
	}

	trade := newImportedTrade(userID, channel, key, parsed)
	err = u.trades.CreateImported(trade, &tradedomain.IngestionRecord{MessageID: key, Channel: channel})
	if errors.Is(err, tradedomain.ErrAlreadyImported) {
		log.Debug("email imported concurrently")
		return OutcomeDuplicate, nil, nil
	}
	if err != nil {
		log.Error("failed to save imported trade", zap.Error(err))
		return OutcomeFailed, nil, err
	}

	log.Info("trade imported",
		zap.String("trade_id", trade.ID),
		zap.String("pair", trade.Pair),
		zap.String("broker", trade.Broker),
	)
	return OutcomePersisted, trade, nil
}

func (u *ingestionUsecase) SyncMailbox(ctx context.Context, userID string) (*Summary, error) {
	user, err := u.users.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	source, channel, err := u.sourceFor(user)
	if err != nil {
		return nil, err
	}

	emails, err := source.FetchTradeEmails(ctx, user, u.opts.PageSize)
	if err != nil {
		u.log.Error("mail fetch failed", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("fetch mail: %w", err)
	}

	return u.IngestEmails(ctx, user.ID, channel, emails)
}

func (u *ingestionUsecase) sourceFor(user *authdomain.User) (MailSource, tradedomain.Channel, error) {
	if u.opts.DemoMode && u.sources.Demo != nil {
		return u.sources.Demo, tradedomain.ChannelDemo, nil
	}
	switch user.MailProvider {
	case authdomain.MailProviderIMAP:
		if u.sources.IMAP != nil && user.ImapServer != "" {
			return u.sources.IMAP, tradedomain.ChannelMailSync, nil
		}
	case authdomain.MailProviderGmail:
		if u.sources.Gmail != nil && user.AccessToken != "" {
			return u.sources.Gmail, tradedomain.ChannelMailSync, nil
		}
	}
	return nil, "", ErrMailboxNotLinked
}

func (u *ingestionUsecase) WatchMailbox(ctx context.Context, userID string) (uint64, error) {
	user, err := u.users.FindByID(userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	if u.watcher == nil || user.MailProvider != authdomain.MailProviderGmail || user.AccessToken == "" {
		return 0, ErrMailboxNotLinked
	}
	return u.watcher.WatchMailbox(ctx, user)
}

func (u *ingestionUsecase) ImportForwarded(ctx context.Context, secret string, req *tradedto.InboundEmailRequest) (*tradedto.InboundEmailResponse, error) {
	if u.opts.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(u.opts.WebhookSecret)) != 1 {
		return nil, ErrUnauthorized
	}

	user, err := u.ResolveRecipient(req.To)
	if err != nil {
		return nil, err
	}

	email := &tradedomain.RawEmail{
		MessageID:  strings.TrimSpace(req.MessageID),
		To:         req.To,
		Subject:    req.Subject,
		Body:       req.Body,
		IsHTML:     parser.LooksLikeHTML(req.Body),
		ReceivedAt: time.Now(),
	}
	email.From, email.FromName = splitSender(req.From)
	if email.MessageID == "" {
		email.MessageID = forwardKey(req.From, req.Subject, req.Body)
	}

	outcome, trade, err := u.ingestOne(user.ID, tradedomain.ChannelForward, email)
	switch outcome {
	case OutcomeParseFailed:
		return &tradedto.InboundEmailResponse{
			Success: false,
			Message: "no trade details could be found in this email",
		}, nil
	case OutcomeDuplicate:
		return &tradedto.InboundEmailResponse{
			Success:   false,
			Duplicate: true,
			Message:   "already imported",
		}, nil
	case OutcomeFailed:
		return nil, fmt.Errorf("save forwarded trade: %w", err)
	}

	u.notify(ctx, user.ID, []*tradedomain.Trade{trade})

	return &tradedto.InboundEmailResponse{
		Success: true,
		Trade: &tradedto.ImportedTrade{
			ID:        trade.ID,
			Pair:      trade.Pair,
			Direction: trade.Direction,
			Broker:    trade.Broker,
		},
	}, nil
}

// ResolveRecipient finds the user behind a forwarding alias such as
// "import+alice.example.com@inbound.example". Resolved aliases are cached.
func (u *ingestionUsecase) ResolveRecipient(address string) (*authdomain.User, error) {
	for _, addr := range splitRecipients(address) {
		key := strings.ToLower(addr)
		if id, ok := u.aliases.Get(key); ok {
			user, err := u.users.FindByID(id.(string))
			if err != nil {
				return nil, err
			}
			if user != nil {
				return user, nil
			}
			u.aliases.Delete(key)
		}

		for _, candidate := range AliasCandidates(addr, u.opts.AliasPrefix) {
			user, err := u.users.FindByEmail(candidate)
			if err != nil {
				return nil, err
			}
			if user != nil {
				u.aliases.SetDefault(key, user.ID)
				return user, nil
			}
		}
	}
	return nil, ErrRecipientNotFound
}

func (u *ingestionUsecase) notify(ctx context.Context, userID string, trades []*tradedomain.Trade) {
	if u.notifier == nil || len(trades) == 0 {
		return
	}
	u.notifier.TradesImported(ctx, userID, trades)
}

// AliasCandidates lists the addresses an alias may encode, most likely first.
// The local part carries the user's address with "@" written as "=", "_at_",
// or a plain "." (in which case every dot is tried from the left).
func AliasCandidates(address, prefix string) []string {
	local := strings.ToLower(strings.TrimSpace(address))
	if at := strings.LastIndex(local, "@"); at >= 0 {
		local = local[:at]
	}
	if prefix != "" {
		p := strings.ToLower(prefix) + "+"
		if !strings.HasPrefix(local, p) {
			return nil
		}
		local = local[len(p):]
	}
	if local == "" {
		return nil
	}

	switch {
	case strings.Contains(local, "@"):
		return validAddresses(local)
	case strings.Contains(local, "_at_"):
		return validAddresses(strings.Replace(local, "_at_", "@", 1))
	case strings.Contains(local, "="):
		return validAddresses(strings.Replace(local, "=", "@", 1))
	}

	var out []string
	for i := 0; i < len(local); i++ {
		if local[i] == '.' {
			out = append(out, validAddresses(local[:i]+"@"+local[i+1:])...)
		}
	}
	return out
}

func validAddresses(candidates ...string) []string {
	var out []string
	for _, c := range candidates {
		at := strings.Index(c, "@")
		if at <= 0 || at == len(c)-1 {
			continue
		}
		domain := c[at+1:]
		if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
			continue
		}
		out = append(out, c)
	}
	return out
}

func splitRecipients(to string) []string {
	if list, err := mail.ParseAddressList(to); err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.Address)
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(to, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitSender returns the bare address and display name of a From value.
func splitSender(from string) (string, string) {
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address, addr.Name
	}
	return strings.TrimSpace(from), ""
}

// forwardKey derives a stable dedup key for mail that arrived without a message id.
func forwardKey(from, subject, body string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(from) + "\n" + strings.TrimSpace(subject) + "\n" + strings.TrimSpace(body)))
	return forwardKeyPrefix + hex.EncodeToString(sum[:])
}

func newImportedTrade(userID string, channel tradedomain.Channel, key string, p *tradedomain.ParsedTrade) *tradedomain.Trade {
	p.Verified = channel != tradedomain.ChannelDemo
	verificationSource := ""
	if p.Verified {
		verificationSource = string(channel)
	}

	tags := make([]string, 0, len(p.Tags)+1)
	tags = append(tags, channel.Tag())
	tags = append(tags, p.Tags...)

	pnlSource := ""
	if p.PnLAmount != nil || p.PnLPips != nil {
		pnlSource = tradedomain.PnLSourceBroker
	}

	messageID := key
	return &tradedomain.Trade{
		UserID:             userID,
		Pair:               p.Pair,
		NormalizedPair:     p.Pair,
		Direction:          p.Direction,
		EntryPrice:         p.EntryPrice,
		ExitPrice:          p.ExitPrice,
		StopLoss:           p.StopLoss,
		TakeProfit:         p.TakeProfit,
		EntryTime:          p.EntryTime,
		ExitTime:           p.ExitTime,
		Timezone:           p.Timezone,
		Session:            p.Session,
		LotSize:            p.LotSize,
		RawLotSize:         p.RawLotSize,
		RawLotUnit:         p.RawLotUnit,
		LotBroker:          p.LotBroker,
		PnLAmount:          p.PnLAmount,
		PnLPips:            p.PnLPips,
		PnLCurrency:        p.PnLCurrency,
		PnLSource:          pnlSource,
		Notes:              p.Notes,
		Tags:               tags,
		IsVerified:         p.Verified,
		VerificationSource: verificationSource,
		Broker:             p.Broker,
		SourceMessageID:    &messageID,
		DataSource:         channel.DataSource(),
	}
}
