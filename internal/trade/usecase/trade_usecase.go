package usecase

import (
	"strings"
	"time"

	tradedomain "fxjournal-backend/internal/trade/domain"
	tradedto "fxjournal-backend/internal/trade/dto"
	"fxjournal-backend/internal/trade/parser"
	"fxjournal-backend/internal/trade/repository"
	"fxjournal-backend/pkg/logger"
	"fxjournal-backend/pkg/lotsize"
	"fxjournal-backend/pkg/session"

	"go.uber.org/zap"
)

// tradeUsecase implements TradeUsecase interface
type tradeUsecase struct {
	trades repository.TradeRepository
	loc    *time.Location
	now    func() time.Time
	log    *zap.Logger
}

// NewTradeUsecase creates a new instance of tradeUsecase. loc is the zone
// manual entries without an explicit timezone are read in.
func NewTradeUsecase(trades repository.TradeRepository, loc *time.Location, log *zap.Logger) TradeUsecase {
	if loc == nil {
		loc = session.DefaultZone
	}
	return &tradeUsecase{
		trades: trades,
		loc:    loc,
		now:    time.Now,
		log:    logger.OrNop(log),
	}
}

func (u *tradeUsecase) ListTrades(userID string, filter repository.ListFilter) ([]tradedomain.Trade, int64, error) {
	if filter.Pair != "" {
		if pair, ok := parser.NormalizePair(filter.Pair); ok {
			filter.Pair = pair
		}
	}
	return u.trades.FindByUser(userID, filter)
}

func (u *tradeUsecase) GetTrade(userID, id string) (*tradedomain.Trade, error) {
	trade, err := u.trades.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, ErrTradeNotFound
	}
	return trade, nil
}

func (u *tradeUsecase) CreateTrade(userID string, req *tradedto.CreateTradeRequest) (*tradedomain.Trade, error) {
	pair, ok := parser.NormalizePair(req.Pair)
	if !ok {
		return nil, ErrInvalidPair
	}

	loc := u.loc
	timezone := loc.String()
	if req.Timezone != "" {
		l, err := time.LoadLocation(req.Timezone)
		if err != nil {
			return nil, ErrInvalidTimezone
		}
		loc, timezone = l, req.Timezone
	}

	entryTime := u.now().In(loc).Format(time.RFC3339)
	if req.EntryTime != "" {
		resolved, ok := session.ResolveTimestamp(req.EntryTime, loc)
		if !ok {
			return nil, ErrInvalidTimestamp
		}
		entryTime = resolved
	}
	exitTime := ""
	if req.ExitTime != "" {
		resolved, ok := session.ResolveTimestamp(req.ExitTime, loc)
		if !ok {
			return nil, ErrInvalidTimestamp
		}
		exitTime = resolved
	}

	trade := &tradedomain.Trade{
		UserID:         userID,
		Pair:           pair,
		NormalizedPair: pair,
		Direction:      tradedomain.Direction(strings.ToUpper(string(req.Direction))),
		EntryPrice:     req.EntryPrice,
		ExitPrice:      req.ExitPrice,
		StopLoss:       req.StopLoss,
		TakeProfit:     req.TakeProfit,
		EntryTime:      entryTime,
		ExitTime:       exitTime,
		Timezone:       timezone,
		LotSize:        req.LotSize,
		Broker:         req.Broker,
		PnLAmount:      req.PnLAmount,
		PnLPips:        req.PnLPips,
		PnLCurrency:    strings.ToUpper(req.PnLCurrency),
		Notes:          req.Notes,
		Tags:           append([]string{}, req.Tags...),
		DataSource:     tradedomain.DataSourceManual,
	}
	// session windows are defined in the default zone, not the entry's own zone
	if name, ok := session.ForTimestamp(entryTime, u.loc); ok {
		trade.Session = string(name)
	}
	if req.LotUnit != "" || req.Broker != "" {
		raw := req.LotSize
		trade.RawLotSize = &raw
		trade.RawLotUnit = req.LotUnit
		trade.LotBroker = req.Broker
		trade.LotSize = lotsize.Normalize(req.LotSize, req.LotUnit, req.Broker)
	}
	if trade.PnLAmount != nil || trade.PnLPips != nil {
		trade.PnLSource = tradedomain.PnLSourceManual
	}

	if err := u.trades.Create(trade); err != nil {
		return nil, err
	}
	u.log.Info("manual trade created", zap.String("user_id", userID), zap.String("trade_id", trade.ID), zap.String("pair", pair))
	return trade, nil
}

// FormatLot renders a stored trade's lot size in the requested style.
func (u *tradeUsecase) FormatLot(userID, id string, style lotsize.Style) (string, float64, error) {
	trade, err := u.GetTrade(userID, id)
	if err != nil {
		return "", 0, err
	}
	brokerName := trade.LotBroker
	if brokerName == "" {
		brokerName = trade.Broker
	}
	return lotsize.Format(trade.LotSize, style, brokerName), trade.LotSize, nil
}
