package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authdomain "fxjournal-backend/internal/auth/domain"
	authUsecase "fxjournal-backend/internal/auth/usecase"
	tradedomain "fxjournal-backend/internal/trade/domain"
	tradedto "fxjournal-backend/internal/trade/dto"
	"fxjournal-backend/internal/trade/repository"
	tradeUsecase "fxjournal-backend/internal/trade/usecase"
	"fxjournal-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubAuth struct {
	authUsecase.AuthUsecase
}

func (stubAuth) ValidateToken(token string) (*authdomain.User, error) {
	if token != "good" {
		return nil, authUsecase.ErrInvalidToken
	}
	return &authdomain.User{ID: "u1", Email: "alice@example.com"}, nil
}

type stubTrades struct {
	tradeUsecase.TradeUsecase
}

func (stubTrades) ListTrades(userID string, filter repository.ListFilter) ([]tradedomain.Trade, int64, error) {
	return []tradedomain.Trade{{ID: "t1", UserID: userID}}, 1, nil
}

type stubIngestion struct {
	tradeUsecase.IngestionUsecase
}

func (stubIngestion) ImportForwarded(ctx context.Context, secret string, req *tradedto.InboundEmailRequest) (*tradedto.InboundEmailResponse, error) {
	if secret != "hook" {
		return nil, tradeUsecase.ErrUnauthorized
	}
	return nil, errors.New("not wired")
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Debug: true, WebhookRateLimit: 100, WebhookRateBurst: 100}
	r, err := NewHandler(stubAuth{}, stubTrades{}, stubIngestion{}, cfg, zaptest.NewLogger(t)).Engine()
	require.NoError(t, err)
	return r
}

func serve(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:5173")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	r := newEngine(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/api/health", "", "", http.StatusOK},
		{"trades need auth", http.MethodGet, "/api/trades", "", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/trades", "nope", "", http.StatusUnauthorized},
		{"list trades", http.MethodGet, "/api/trades", "good", "", http.StatusOK},
		{"mailbox needs auth", http.MethodPut, "/api/auth/mailbox/gmail", "", `{}`, http.StatusUnauthorized},
		{"webhook without secret", http.MethodPost, "/api/webhooks/inbound-email", "", `{"to":"import+a@b.co"}`, http.StatusUnauthorized},
		{"preflight", http.MethodOptions, "/api/trades", "", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Debug: true, WebhookRateLimit: 1, WebhookRateBurst: 1}
	srv, err := NewHandler(stubAuth{}, stubTrades{}, stubIngestion{}, cfg, nil).Server(":0")
	require.NoError(t, err)
	assert.Equal(t, ":0", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
