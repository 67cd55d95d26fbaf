package parser

import (
	"testing"
	"time"

	"fxjournal-backend/internal/trade/domain"
	"fxjournal-backend/pkg/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return NewExtractor(nil).WithClock(func() time.Time { return fixedNow })
}

func TestExtractEmail_ForwardedOANDA(t *testing.T) {
	got, ok := newTestExtractor().ExtractEmail(&domain.RawEmail{
		MessageID: "<abc@oanda.com>",
		From:      "broker@oanda.com",
		Subject:   "Trade Confirmation",
		Body:      "BUY USDJPY 0.10 lot @150.20",
	})
	require.True(t, ok)

	assert.Equal(t, "USDJPY", got.Pair)
	assert.Equal(t, domain.DirectionBuy, got.Direction)
	assert.Equal(t, 150.20, got.EntryPrice)
	assert.Equal(t, 0.1, got.LotSize)
	assert.Equal(t, broker.OANDA, got.Broker)
	assert.Equal(t, "<abc@oanda.com>", got.MessageID)
	assert.Nil(t, got.ExitPrice)
	assert.Equal(t, "2024-03-15T10:00:00+09:00", got.EntryTime)
	assert.Equal(t, "Tokyo", got.Session)
	assert.Equal(t, []string{TagTimeDefaulted}, got.Tags)
	assert.Equal(t, "Imported from email: Trade Confirmation", got.Notes)
}

func TestExtract_ISOTimeWithoutSeconds(t *testing.T) {
	got, ok := newTestExtractor().Extract("Trade Confirmation", "BUY USDJPY 0.10 lot @150.20\nEntry time: 2024-03-15T10:00+09:00", "")
	require.True(t, ok)

	assert.Equal(t, "2024-03-15T10:00+09:00", got.EntryTime)
	assert.Equal(t, "Tokyo", got.Session)
	assert.NotContains(t, got.Tags, TagTimeDefaulted)
}

func TestExtractEmail_JapaneseExecution(t *testing.T) {
	body := "約定日時：2024/03/15(金) 10:23:45\n" +
		"通貨ペア：米ドル／円\n" +
		"売買：買\n" +
		"取引数量：10万通貨\n" +
		"約定価格：150.123\n"

	got, ok := newTestExtractor().ExtractEmail(&domain.RawEmail{
		From:    "info@click-sec.com",
		Subject: "【GMOクリック証券】約定のお知らせ",
		Body:    body,
	})
	require.True(t, ok)

	assert.Equal(t, "USDJPY", got.Pair)
	assert.Equal(t, domain.DirectionBuy, got.Direction)
	assert.Equal(t, 150.123, got.EntryPrice)
	assert.Equal(t, 1.0, got.LotSize)
	require.NotNil(t, got.RawLotSize)
	assert.Equal(t, 10.0, *got.RawLotSize)
	assert.Equal(t, "万通貨", got.RawLotUnit)
	assert.Equal(t, broker.GMOClick, got.Broker)
	assert.Equal(t, "2024-03-15T10:23:45+09:00", got.EntryTime)
	assert.Equal(t, "Tokyo", got.Session)
	assert.Empty(t, got.Tags)
}

func TestExtractEmail_SettlementUsesExecutedPriceAsExit(t *testing.T) {
	body := "通貨ペア: ユーロ/円\n" +
		"売買: 売\n" +
		"数量: 3Lot\n" +
		"約定価格: 162.50\n" +
		"決済損益: ▲12,300円\n" +
		"約定日時: 2024/03/15 18:05\n"

	got, ok := newTestExtractor().ExtractEmail(&domain.RawEmail{
		From:    "info@click-sec.com",
		Subject: "決済約定のお知らせ",
		Body:    body,
	})
	require.True(t, ok)

	assert.Equal(t, "EURJPY", got.Pair)
	assert.Equal(t, domain.DirectionSell, got.Direction)
	require.NotNil(t, got.ExitPrice)
	assert.Equal(t, 162.50, *got.ExitPrice)
	assert.Equal(t, 162.50, got.EntryPrice)
	assert.Contains(t, got.Tags, TagEntryInferred)
	assert.Equal(t, 0.3, got.LotSize)
	require.NotNil(t, got.PnLAmount)
	assert.Equal(t, -12300.0, *got.PnLAmount)
	assert.Equal(t, "JPY", got.PnLCurrency)
	assert.Equal(t, "2024-03-15T18:05:00+09:00", got.EntryTime)
	assert.Equal(t, "London", got.Session)
}

func TestExtractEmail_HTMLTable(t *testing.T) {
	body := "<html><body><table>" +
		"<tr><td>Symbol</td><td>EUR/USD</td></tr>" +
		"<tr><td>Side</td><td>Sell</td></tr>" +
		"<tr><td>Volume</td><td>0.5 lots</td></tr>" +
		"<tr><td>Price</td><td>1.08550</td></tr>" +
		"<tr><td>Stop Loss</td><td>1.09000</td></tr>" +
		"<tr><td>Take Profit</td><td>1.08000</td></tr>" +
		"<tr><td>Time</td><td>2024-03-15T14:30:00Z</td></tr>" +
		"</table></body></html>"

	got, ok := newTestExtractor().Extract("Order Filled", body, "m-1")
	require.True(t, ok)

	assert.Equal(t, "EURUSD", got.Pair)
	assert.Equal(t, domain.DirectionSell, got.Direction)
	assert.Equal(t, 1.0855, got.EntryPrice)
	require.NotNil(t, got.StopLoss)
	assert.Equal(t, 1.09, *got.StopLoss)
	require.NotNil(t, got.TakeProfit)
	assert.Equal(t, 1.08, *got.TakeProfit)
	assert.Nil(t, got.PnLAmount)
	assert.Equal(t, 0.5, got.LotSize)
	assert.Equal(t, "2024-03-15T14:30:00Z", got.EntryTime)
	assert.Equal(t, "London", got.Session)
	assert.Empty(t, got.Broker)
}

func TestExtractEmail_Base64Body(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		body      string
		pair      string
		direction domain.Direction
		entry     float64
		lot       float64
	}{
		{
			name:      "english",
			body:      "QlVZIEdCUEpQWSAxLjUgbG90cyBAMTkwLjUw",
			pair:      "GBPJPY",
			direction: domain.DirectionBuy,
			entry:     190.50,
			lot:       1.5,
		},
		{
			name:      "japanese with broker lots",
			from:      "no-reply@fx.dmm.com",
			body:      "5aOy6LK377ya5aOyCumAmuiyqOODmuOCou+8muixquODieODqy/lhoYK57SE5a6a5L6h5qC877yaOTguNzY1CuWPluW8leaVsOmHj++8mjVMb3Q=",
			pair:      "AUDJPY",
			direction: domain.DirectionSell,
			entry:     98.765,
			lot:       0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := newTestExtractor().ExtractEmail(&domain.RawEmail{From: tt.from, Body: tt.body})
			require.True(t, ok)
			assert.Equal(t, tt.pair, got.Pair)
			assert.Equal(t, tt.direction, got.Direction)
			assert.Equal(t, tt.entry, got.EntryPrice)
			assert.Equal(t, tt.lot, got.LotSize)
		})
	}
}

func TestExtract_FullWidth(t *testing.T) {
	got, ok := newTestExtractor().Extract("", "ＵＳＤ／ＪＰＹ　買　１．０ロット　＠１５０．５０", "")
	require.True(t, ok)
	assert.Equal(t, "USDJPY", got.Pair)
	assert.Equal(t, domain.DirectionBuy, got.Direction)
	assert.Equal(t, 150.5, got.EntryPrice)
	assert.Equal(t, 1.0, got.LotSize)
}

func TestExtract_ClosedPositionWithPnL(t *testing.T) {
	body := "Closed USDJPY sell 1 lot.\nEntry Price: 150.00\nClose Price: 149.50\nP/L: +$500.00 (50 pips)"

	got, ok := newTestExtractor().Extract("Position closed", body, "")
	require.True(t, ok)

	assert.Equal(t, domain.DirectionSell, got.Direction)
	assert.Equal(t, 150.0, got.EntryPrice)
	require.NotNil(t, got.ExitPrice)
	assert.Equal(t, 149.5, *got.ExitPrice)
	assert.Equal(t, 1.0, got.LotSize)
	require.NotNil(t, got.PnLAmount)
	assert.Equal(t, 500.0, *got.PnLAmount)
	assert.Equal(t, "USD", got.PnLCurrency)
	require.NotNil(t, got.PnLPips)
	assert.Equal(t, 50.0, *got.PnLPips)
	assert.NotContains(t, got.Tags, TagEntryInferred)
}

func TestExtract_MissingDirectionDefaultsToBuy(t *testing.T) {
	got, ok := newTestExtractor().Extract("", "EURUSD filled @1.0850", "")
	require.True(t, ok)
	assert.Equal(t, domain.DirectionBuy, got.Direction)
	assert.Contains(t, got.Tags, TagDirectionUnconfirmed)
	assert.Zero(t, got.LotSize)
	assert.Nil(t, got.RawLotSize)
}

func TestExtract_NotATrade(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
	}{
		{"empty", "", ""},
		{"newsletter", "Monthly statement", "Hello, your statement is ready."},
		{"pair without price", "Alert", "USDJPY moved sharply today"},
		{"price without pair", "Fill", "BUY 0.1 lot @150.20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := newTestExtractor().Extract(tt.subject, tt.body, "")
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestExtractEmail_Nil(t *testing.T) {
	got, ok := newTestExtractor().ExtractEmail(nil)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestExtractEmail_FallsBackToSnippet(t *testing.T) {
	got, ok := newTestExtractor().ExtractEmail(&domain.RawEmail{
		Snippet: "SELL EURUSD 2 lots @1.0900",
	})
	require.True(t, ok)
	assert.Equal(t, "EURUSD", got.Pair)
	assert.Equal(t, domain.DirectionSell, got.Direction)
	assert.Equal(t, 2.0, got.LotSize)
}

func TestNormalizePair(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		ok       bool
	}{
		{"USDJPY", "USDJPY", true},
		{"usd/jpy", "USDJPY", true},
		{"USD JPY", "USDJPY", true},
		{"EUR-USD", "EURUSD", true},
		{"ＧＢＰ／ＪＰＹ", "GBPJPY", true},
		{"ドル円", "USDJPY", true},
		{"豪ドル/円", "AUDJPY", true},
		{"USDSEK", "USDSEK", true},
		{"USDUSD", "", false},
		{"XYZABC", "", false},
		{"USD", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePair(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML(`<style>td{color:red}</style><p>Price&nbsp;&amp;&nbsp;Rate</p><br/><div>150.20`)
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, "color")
	assert.Contains(t, got, "Price & Rate")
	assert.Contains(t, got, "150.20")

	// unterminated tags are dropped instead of rejected
	assert.NotContains(t, StripHTML("USDJPY 150.20 <td class="), "<td")
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<div>hi</div>"))
	assert.True(t, LooksLikeHTML("text</span>"))
	assert.False(t, LooksLikeHTML("BUY USDJPY @150.20 (1 < 2)"))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
		ok       bool
	}{
		{"150.20", 150.20, true},
		{"12,300", 12300, true},
		{"-1,234.5", -1234.5, true},
		{"1,2,,3", 0, false},
		{"100,", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
