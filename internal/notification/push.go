package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tradedomain "fxjournal-backend/internal/trade/domain"
	"fxjournal-backend/pkg/fcm"
	"fxjournal-backend/pkg/logger"

	"go.uber.org/zap"
)

const maxListedTrades = 3

// TokenStore is the part of the FCM token repository the notifier needs.
type TokenStore interface {
	TokensForUser(userID string) ([]string, error)
	DeleteTokens(tokens []string) error
}

// PushSender delivers one notification to many devices and reports the tokens that failed.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// PushNotifier tells a user's devices about trades created by an automated import.
// Sends run in the background so the import path never waits on FCM.
type PushNotifier struct {
	tokens  TokenStore
	sender  PushSender
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewPushNotifier(tokens TokenStore, sender PushSender, log *zap.Logger) *PushNotifier {
	return &PushNotifier{
		tokens:  tokens,
		sender:  sender,
		timeout: 10 * time.Second,
		log:     logger.OrNop(log),
	}
}

// TradesImported implements usecase.Notifier.
func (n *PushNotifier) TradesImported(ctx context.Context, userID string, trades []*tradedomain.Trade) {
	if n == nil || n.sender == nil || n.tokens == nil || len(trades) == 0 {
		return
	}

	message := buildImportMessage(trades)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		// the request context ends with the HTTP response
		sendCtx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		n.send(sendCtx, userID, message)
	}()
}

// Wait blocks until in-flight sends finish.
func (n *PushNotifier) Wait() {
	n.wg.Wait()
}

func (n *PushNotifier) send(ctx context.Context, userID string, message fcm.NotificationData) {
	tokens, err := n.tokens.TokensForUser(userID)
	if err != nil {
		n.log.Error("failed to load device tokens", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		n.log.Debug("no device tokens, skipping push", zap.String("user_id", userID))
		return
	}

	failed, err := n.sender.SendToDevices(ctx, tokens, message)
	if err != nil {
		n.log.Error("failed to send import notification", zap.String("user_id", userID), zap.Error(err))
		return
	}
	n.log.Info("import notification sent",
		zap.String("user_id", userID),
		zap.Int("devices", len(tokens)-len(failed)),
	)

	if len(failed) > 0 {
		if err := n.tokens.DeleteTokens(failed); err != nil {
			n.log.Warn("failed to clean up device tokens", zap.Int("count", len(failed)), zap.Error(err))
		}
	}
}

func buildImportMessage(trades []*tradedomain.Trade) fcm.NotificationData {
	title := "1 trade imported"
	if len(trades) != 1 {
		title = fmt.Sprintf("%d trades imported", len(trades))
	}

	lines := make([]string, 0, maxListedTrades+1)
	for i, t := range trades {
		if i == maxListedTrades {
			lines = append(lines, fmt.Sprintf("and %d more", len(trades)-maxListedTrades))
			break
		}
		line := fmt.Sprintf("%s %s", t.Pair, t.Direction)
		if t.Broker != "" {
			line += " (" + t.Broker + ")"
		}
		lines = append(lines, line)
	}

	clickAction := "/trades"
	if len(trades) == 1 {
		clickAction = "/trades/" + trades[0].ID
	}

	return fcm.NotificationData{
		Title: title,
		Body:  strings.Join(lines, ", "),
		Data: map[string]string{
			"type":  "trades_imported",
			"count": strconv.Itoa(len(trades)),
		},
		ClickAction: clickAction,
	}
}
