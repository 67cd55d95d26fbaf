package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	authdomain "fxjournal-backend/internal/auth/domain"
	"fxjournal-backend/internal/trade/usecase"
	"fxjournal-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes when a watched mailbox changes.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Syncer runs a pull sync for one user.
type Syncer interface {
	SyncMailbox(ctx context.Context, userID string) (*usecase.Summary, error)
}

// UserFinder resolves the mailbox owner named in a notification.
type UserFinder interface {
	FindByEmail(email string) (*authdomain.User, error)
}

// Service listens for Gmail push notifications and syncs the affected mailbox.
type Service struct {
	pubsubClient *pubsub.Client
	users        UserFinder
	syncer       Syncer
	topicName    string
	subName      string
	log          *zap.Logger

	mu sync.Mutex
	// last historyId handled per user
	lastHistoryID map[string]uint64
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, users UserFinder, syncer Syncer, log *zap.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	s := newService(users, syncer, topicName, log)
	s.pubsubClient = client
	return s, nil
}

func newService(users UserFinder, syncer Syncer, topicName string, log *zap.Logger) *Service {
	return &Service{
		users:         users,
		syncer:        syncer,
		topicName:     topicName,
		subName:       topicName + "-sub",
		log:           logger.OrNop(log),
		lastHistoryID: make(map[string]uint64),
	}
}

// Start receives messages until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.log.Info("starting notification listener",
		zap.String("topic", s.topicName),
		zap.String("subscription", s.subName),
	)

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		s.log.Error("notification listener not started", zap.Error(err))
		return
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.HandleNotification(ctx, msg.Data); err != nil {
			s.log.Warn("notification handling failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
		// a failed sync is retried on the next notification, not by redelivery
		msg.Ack()
	})
	if err != nil {
		s.log.Error("error receiving messages", zap.Error(err))
	}
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	s.log.Info("created subscription", zap.String("subscription", s.subName))
	return sub, nil
}

// HandleNotification syncs the mailbox named in one Gmail notification.
// Notifications for unknown addresses and replays of an already handled
// historyId are dropped.
func (s *Service) HandleNotification(ctx context.Context, data []byte) error {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}

	user, err := s.users.FindByEmail(notification.EmailAddress)
	if err != nil {
		return fmt.Errorf("find user %s: %w", notification.EmailAddress, err)
	}
	if user == nil {
		s.log.Debug("notification for unknown mailbox", zap.String("email", notification.EmailAddress))
		return nil
	}

	if !s.advance(user.ID, notification.HistoryID) {
		s.log.Debug("skipping replayed notification",
			zap.String("user_id", user.ID),
			zap.Uint64("history_id", notification.HistoryID),
		)
		return nil
	}

	summary, err := s.syncer.SyncMailbox(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("sync mailbox for %s: %w", user.ID, err)
	}
	s.log.Info("push sync finished",
		zap.String("user_id", user.ID),
		zap.Int("created", summary.Created),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

// advance records historyID for the user and reports whether it is newer than the last one seen.
func (s *Service) advance(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[userID]; ok && historyID <= last {
		return false
	}
	s.lastHistoryID[userID] = historyID
	return true
}

func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}
