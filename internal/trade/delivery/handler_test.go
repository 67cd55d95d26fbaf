package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authdomain "fxjournal-backend/internal/auth/domain"
	tradedomain "fxjournal-backend/internal/trade/domain"
	tradedto "fxjournal-backend/internal/trade/dto"
	"fxjournal-backend/internal/trade/repository"
	"fxjournal-backend/internal/trade/usecase"
	"fxjournal-backend/pkg/lotsize"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeIngestion struct {
	usecase.IngestionUsecase
	secret   string
	response *tradedto.InboundEmailResponse
	err      error
	summary  *usecase.Summary
	gotReq   *tradedto.InboundEmailRequest
}

func (f *fakeIngestion) ImportForwarded(ctx context.Context, secret string, req *tradedto.InboundEmailRequest) (*tradedto.InboundEmailResponse, error) {
	f.secret = secret
	f.gotReq = req
	return f.response, f.err
}

func (f *fakeIngestion) SyncMailbox(ctx context.Context, userID string) (*usecase.Summary, error) {
	return f.summary, f.err
}

func (f *fakeIngestion) WatchMailbox(ctx context.Context, userID string) (uint64, error) {
	return 4242, f.err
}

func (f *fakeIngestion) ResolveRecipient(address string) (*authdomain.User, error) {
	return nil, usecase.ErrRecipientNotFound
}

type fakeTrades struct {
	usecase.TradeUsecase
	trades   []tradedomain.Trade
	filter   repository.ListFilter
	created  *tradedto.CreateTradeRequest
	err      error
	lotStyle lotsize.Style
}

func (f *fakeTrades) ListTrades(userID string, filter repository.ListFilter) ([]tradedomain.Trade, int64, error) {
	f.filter = filter
	return f.trades, int64(len(f.trades)), f.err
}

func (f *fakeTrades) GetTrade(userID, id string) (*tradedomain.Trade, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tradedomain.Trade{ID: id, UserID: userID, Pair: "USDJPY"}, nil
}

func (f *fakeTrades) CreateTrade(userID string, req *tradedto.CreateTradeRequest) (*tradedomain.Trade, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &tradedomain.Trade{ID: "t1", UserID: userID, Pair: "EURUSD"}, nil
}

func (f *fakeTrades) FormatLot(userID, id string, style lotsize.Style) (string, float64, error) {
	f.lotStyle = style
	return "0.30 lot", 0.3, f.err
}

func newRouter(t *testing.T, trades *fakeTrades, ingestion *fakeIngestion) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	r := gin.New()
	webhook := NewWebhookHandler(ingestion)
	r.POST("/api/webhooks/inbound-email", RateLimit(100, 100, zaptest.NewLogger(t)), webhook.InboundEmail)

	h := NewTradeHandler(trades, ingestion)
	api := r.Group("/api/trades", func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	api.GET("", h.ListTrades)
	api.POST("", h.CreateTrade)
	api.POST("/sync", h.SyncMailbox)
	api.POST("/watch", h.WatchMailbox)
	api.GET("/:id", h.GetTrade)
	api.GET("/:id/lot", h.FormatLot)
	return r
}

func doJSON(r http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInboundEmail_Statuses(t *testing.T) {
	payload := gin.H{"to": "import+alice@example.com", "from": "noreply@gmo.jp", "subject": "約定", "body": "..."}

	tests := []struct {
		name     string
		response *tradedto.InboundEmailResponse
		err      error
		want     int
	}{
		{"imported", &tradedto.InboundEmailResponse{Success: true, Trade: &tradedto.ImportedTrade{ID: "t1", Pair: "USDJPY"}}, nil, http.StatusOK},
		{"unparseable", &tradedto.InboundEmailResponse{Message: "no trade found"}, nil, http.StatusOK},
		{"duplicate", &tradedto.InboundEmailResponse{Duplicate: true, Message: "already imported"}, nil, http.StatusOK},
		{"bad secret", nil, usecase.ErrUnauthorized, http.StatusUnauthorized},
		{"unknown recipient", nil, usecase.ErrRecipientNotFound, http.StatusNotFound},
		{"save failure", nil, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestion := &fakeIngestion{response: tt.response, err: tt.err}
			r := newRouter(t, &fakeTrades{}, ingestion)

			w := doJSON(r, http.MethodPost, "/api/webhooks/inbound-email", payload, map[string]string{WebhookSecretHeader: "s3cret"})
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "s3cret", ingestion.secret)
			assert.Equal(t, "import+alice@example.com", ingestion.gotReq.To)
		})
	}
}

func TestInboundEmail_DuplicateBody(t *testing.T) {
	ingestion := &fakeIngestion{response: &tradedto.InboundEmailResponse{Duplicate: true, Message: "already imported"}}
	r := newRouter(t, &fakeTrades{}, ingestion)

	w := doJSON(r, http.MethodPost, "/api/webhooks/inbound-email", gin.H{"to": "a@b.co"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, "already imported", body["message"])
}

func TestInboundEmail_MissingRecipient(t *testing.T) {
	ingestion := &fakeIngestion{}
	r := newRouter(t, &fakeTrades{}, ingestion)

	w := doJSON(r, http.MethodPost, "/api/webhooks/inbound-email", gin.H{"body": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, ingestion.gotReq)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", RateLimit(0.001, 2, zaptest.NewLogger(t)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := doJSON(r, http.MethodGet, "/ping", nil, nil)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestListTrades_Filter(t *testing.T) {
	trades := &fakeTrades{trades: []tradedomain.Trade{{ID: "t1"}, {ID: "t2"}}}
	r := newRouter(t, trades, &fakeIngestion{})

	w := doJSON(r, http.MethodGet, "/api/trades?limit=10&offset=5&source=email_sync&pair=usd/jpy", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.ListFilter{
		DataSource: tradedomain.DataSourceEmailSync,
		Pair:       "usd/jpy",
		Limit:      10,
		Offset:     5,
	}, trades.filter)

	var body struct {
		Trades []tradedomain.Trade `json:"trades"`
		Total  int64               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Trades, 2)
	assert.EqualValues(t, 2, body.Total)
}

func TestGetTrade_NotFound(t *testing.T) {
	r := newRouter(t, &fakeTrades{err: usecase.ErrTradeNotFound}, &fakeIngestion{})
	w := doJSON(r, http.MethodGet, "/api/trades/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTrade_Validation(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
		err  error
		want int
	}{
		{"valid", gin.H{"pair": "EUR/USD", "direction": "BUY", "entry_price": 1.08}, nil, http.StatusCreated},
		{"unknown pair", gin.H{"pair": "FOOBAR", "direction": "BUY", "entry_price": 1.08}, nil, http.StatusBadRequest},
		{"bad direction", gin.H{"pair": "EURUSD", "direction": "LONG", "entry_price": 1.08}, nil, http.StatusBadRequest},
		{"missing price", gin.H{"pair": "EURUSD", "direction": "SELL"}, nil, http.StatusBadRequest},
		{"bad timezone", gin.H{"pair": "EURUSD", "direction": "SELL", "entry_price": 1.08, "timezone": "Mars/Base"}, usecase.ErrInvalidTimezone, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, &fakeTrades{err: tt.err}, &fakeIngestion{})
			w := doJSON(r, http.MethodPost, "/api/trades", tt.body, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestFormatLot_Styles(t *testing.T) {
	trades := &fakeTrades{}
	r := newRouter(t, trades, &fakeIngestion{})

	w := doJSON(r, http.MethodGet, "/api/trades/t1/lot?format=units", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lotsize.StyleUnits, trades.lotStyle)

	w = doJSON(r, http.MethodGet, "/api/trades/t1/lot", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lotsize.StyleStandard, trades.lotStyle)

	var body tradedto.LotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "0.30 lot", body.Formatted)

	w = doJSON(r, http.MethodGet, "/api/trades/t1/lot?format=pips", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncMailbox_Statuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"not linked", usecase.ErrMailboxNotLinked, http.StatusBadRequest},
		{"no user", usecase.ErrUserNotFound, http.StatusNotFound},
		{"provider down", errors.New("fetch mail: timeout"), http.StatusBadGateway},
		{"nothing saved", usecase.ErrImportFailed, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestion := &fakeIngestion{err: tt.err, summary: &usecase.Summary{Created: 2, Duplicates: 1, Trades: []*tradedomain.Trade{}}}
			r := newRouter(t, &fakeTrades{}, ingestion)

			w := doJSON(r, http.MethodPost, "/api/trades/sync", nil, nil)
			assert.Equal(t, tt.want, w.Code)
			if tt.err == nil {
				var body tradedto.SyncResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, 2, body.Imported)
				assert.Equal(t, 1, body.Duplicates)
			}
		})
	}
}

func TestWatchMailbox(t *testing.T) {
	r := newRouter(t, &fakeTrades{}, &fakeIngestion{})
	w := doJSON(r, http.MethodPost, "/api/trades/watch", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history_id":4242}`, w.Body.String())
}
