package usecase

import (
	"context"
	"errors"

	authdomain "fxjournal-backend/internal/auth/domain"
	authdto "fxjournal-backend/internal/auth/dto"
	"fxjournal-backend/pkg/gmail"
	"fxjournal-backend/pkg/imap"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrMailboxRejected    = errors.New("mailbox credentials were rejected")
	ErrSecretKeyMissing   = errors.New("SECRET_KEY is not configured")
)

// GmailValidator checks OAuth tokens and returns the mailbox address.
type GmailValidator interface {
	ValidateToken(ctx context.Context, accessToken, refreshToken string, onTokenRefresh gmail.TokenUpdateFunc) (string, error)
}

type IMAPChecker interface {
	CheckLogin(ctx context.Context, acct imap.Account) error
}

// AuthUsecase covers accounts, sessions, linked mailboxes and push devices.
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	ValidateToken(token string) (*authdomain.User, error)

	LinkGmail(ctx context.Context, userID string, req *authdto.LinkGmailRequest) (*authdomain.User, error)
	LinkIMAP(ctx context.Context, userID string, req *authdto.LinkIMAPRequest) (*authdomain.User, error)
	UnlinkMailbox(userID string) error

	SaveFCMToken(userID string, req *authdto.FCMTokenRequest) error
	DeleteFCMToken(userID, token string) error
}
