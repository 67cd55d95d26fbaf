package usecase

import (
	"context"
	"fmt"
	"time"

	authdomain "fxjournal-backend/internal/auth/domain"
	authdto "fxjournal-backend/internal/auth/dto"
	"fxjournal-backend/internal/auth/repository"
	"fxjournal-backend/pkg/config"
	"fxjournal-backend/pkg/imap"
	"fxjournal-backend/pkg/logger"
	"fxjournal-backend/pkg/secret"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo repository.UserRepository
	fcmRepo  repository.FCMTokenRepository
	gmail    GmailValidator
	imap     IMAPChecker
	box      *secret.Box
	config   *config.Config
	log      *zap.Logger
}

// NewAuthUsecase creates a new instance of authUsecase. gmail, imap and box may
// be nil, which disables the matching mailbox link.
func NewAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, gmail GmailValidator, imap IMAPChecker, box *secret.Box, cfg *config.Config, log *zap.Logger) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		fcmRepo:  fcmRepo,
		gmail:    gmail,
		imap:     imap,
		box:      box,
		config:   cfg,
		log:      logger.OrNop(log),
	}
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if user == nil || !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	existing, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	timezone := u.config.DefaultTimezone
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, fmt.Errorf("unknown timezone %q", req.Timezone)
		}
		timezone = req.Timezone
	}

	user := &authdomain.User{
		Email:    req.Email,
		Password: hashedPassword,
		Name:     req.Name,
		Timezone: timezone,
	}

	if err := u.userRepo.Create(user); err != nil {
		return nil, err
	}
	u.log.Info("user registered", zap.String("user_id", user.ID))

	return u.generateTokens(user)
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(u.config.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken: accessToken,
		User:        user,
	}, nil
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

func (u *authUsecase) findUser(userID string) (*authdomain.User, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// LinkGmail stores OAuth tokens after confirming they can read the mailbox.
func (u *authUsecase) LinkGmail(ctx context.Context, userID string, req *authdto.LinkGmailRequest) (*authdomain.User, error) {
	if u.gmail == nil {
		return nil, fmt.Errorf("gmail is not configured")
	}
	user, err := u.findUser(userID)
	if err != nil {
		return nil, err
	}

	var refreshed *oauth2.Token
	address, err := u.gmail.ValidateToken(ctx, req.AccessToken, req.RefreshToken, func(t *oauth2.Token) error {
		refreshed = t
		return nil
	})
	if err != nil {
		u.log.Warn("gmail link rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrMailboxRejected
	}

	user.MailProvider = authdomain.MailProviderGmail
	user.AccessToken = req.AccessToken
	user.RefreshToken = req.RefreshToken
	if refreshed != nil {
		user.AccessToken = refreshed.AccessToken
		user.TokenExpiry = refreshed.Expiry
		if refreshed.RefreshToken != "" {
			user.RefreshToken = refreshed.RefreshToken
		}
	}
	clearIMAP(user)

	if err := u.userRepo.Update(user); err != nil {
		return nil, err
	}
	u.log.Info("gmail linked", zap.String("user_id", userID), zap.String("mailbox", address))
	return user, nil
}

// LinkIMAP verifies the login and stores the password sealed.
func (u *authUsecase) LinkIMAP(ctx context.Context, userID string, req *authdto.LinkIMAPRequest) (*authdomain.User, error) {
	if u.box == nil {
		return nil, ErrSecretKeyMissing
	}
	if u.imap == nil {
		return nil, fmt.Errorf("imap is not configured")
	}
	user, err := u.findUser(userID)
	if err != nil {
		return nil, err
	}

	port := req.Port
	if port == 0 {
		port = 993
	}
	acct := imap.Account{Server: req.Server, Port: port, Username: req.Username, Password: req.Password}
	if err := u.imap.CheckLogin(ctx, acct); err != nil {
		u.log.Warn("imap link rejected", zap.String("user_id", userID), zap.String("server", req.Server), zap.Error(err))
		return nil, ErrMailboxRejected
	}

	sealed, err := u.box.Seal(req.Password)
	if err != nil {
		return nil, err
	}

	user.MailProvider = authdomain.MailProviderIMAP
	user.ImapServer = req.Server
	user.ImapPort = port
	user.ImapUsername = req.Username
	user.ImapPassword = sealed
	clearGmail(user)

	if err := u.userRepo.Update(user); err != nil {
		return nil, err
	}
	u.log.Info("imap linked", zap.String("user_id", userID), zap.String("server", req.Server))
	return user, nil
}

func (u *authUsecase) UnlinkMailbox(userID string) error {
	user, err := u.findUser(userID)
	if err != nil {
		return err
	}
	user.MailProvider = ""
	clearGmail(user)
	clearIMAP(user)
	return u.userRepo.Update(user)
}

func (u *authUsecase) SaveFCMToken(userID string, req *authdto.FCMTokenRequest) error {
	return u.fcmRepo.SaveToken(userID, req.Token, req.DeviceInfo)
}

func (u *authUsecase) DeleteFCMToken(userID, token string) error {
	return u.fcmRepo.DeleteUserToken(userID, token)
}

func clearGmail(user *authdomain.User) {
	user.AccessToken = ""
	user.RefreshToken = ""
	user.TokenExpiry = time.Time{}
}

func clearIMAP(user *authdomain.User) {
	user.ImapServer = ""
	user.ImapPort = 0
	user.ImapUsername = ""
	user.ImapPassword = ""
}
