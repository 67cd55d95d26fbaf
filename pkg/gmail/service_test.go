package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/gmail/v1"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestConvertGmailMessage_PrefersPlainText(t *testing.T) {
	msg := &gmail.Message{
		Id:           "18e3c",
		Snippet:      "BUY USDJPY",
		InternalDate: 1710464400000,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: `"OANDA Japan" <noreply@oanda.com>`},
				{Name: "To", Value: "alice@example.com"},
				{Name: "subject", Value: "Order Confirmation"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>BUY USDJPY</p>")}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("BUY USDJPY 0.10 lot @150.20")}},
			},
		},
	}

	email := convertGmailMessage(msg)

	assert.Equal(t, "18e3c", email.MessageID)
	assert.Equal(t, "noreply@oanda.com", email.From)
	assert.Equal(t, "OANDA Japan", email.FromName)
	assert.Equal(t, "alice@example.com", email.To)
	assert.Equal(t, "Order Confirmation", email.Subject)
	assert.Equal(t, "BUY USDJPY 0.10 lot @150.20", email.Body)
	assert.False(t, email.IsHTML)
	assert.Equal(t, int64(1710464400), email.ReceivedAt.Unix())
}

func TestConvertGmailMessage_HTMLOnly(t *testing.T) {
	msg := &gmail.Message{
		Id: "a1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<td>EUR/USD</td>")}},
					},
				},
				{MimeType: "text/plain", Filename: "terms.txt", Body: &gmail.MessagePartBody{Data: encode("ignored")}},
			},
		},
	}

	email := convertGmailMessage(msg)

	assert.Equal(t, "<td>EUR/USD</td>", email.Body)
	assert.True(t, email.IsHTML)
}

func TestConvertGmailMessage_NoPayloadUsesSnippet(t *testing.T) {
	email := convertGmailMessage(&gmail.Message{Id: "x", Snippet: "SELL EURUSD"})
	assert.Equal(t, "SELL EURUSD", email.Body)
}

func TestSplitFrom(t *testing.T) {
	tests := []struct {
		in   string
		addr string
		name string
	}{
		{"DMM FX <info@fx.dmm.com>", "info@fx.dmm.com", "DMM FX"},
		{"plain@example.com", "plain@example.com", ""},
		{`"GMO" <a@b.jp>`, "a@b.jp", "GMO"},
	}
	for _, tt := range tests {
		addr, name := splitFrom(tt.in)
		assert.Equal(t, tt.addr, addr, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}
