package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		sender      string
		displayName string
		expected    string
	}{
		{"gmo domain", "info@click-sec.com", "", GMOClick},
		{"oanda domain", "broker@oanda.com", "", OANDA},
		{"oanda subdomain", "noreply@fxtrade.oanda.com", "", OANDA},
		{"dmm subdomain", "support@fx.dmm.com", "", DMMFX},
		{"sbi", "trade@sbifxt.co.jp", "", SBIFX},
		{"display name only", "noreply@mail.example.jp", "GMOクリック証券", GMOClick},
		{"mixed case", "Alerts@OANDA.COM", "", OANDA},
		{"unknown", "someone@example.com", "Someone", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect(tt.sender, tt.displayName))
		})
	}
}

func TestDetect_FirstRuleWins(t *testing.T) {
	// Address matches the DMM domain while the display name names another broker;
	// rules are walked in table order so the earlier DMM rule must win.
	assert.Equal(t, DMMFX, Detect("info@fx.dmm.com", "外為どっとコム"))
}

func TestLookup(t *testing.T) {
	p, ok := Lookup(GMOClick)
	assert.True(t, ok)
	assert.Equal(t, 0.1, p.Multiplier)

	p, ok = Lookup(OANDA)
	assert.True(t, ok)
	assert.Equal(t, 1.0, p.Multiplier)

	_, ok = Lookup("Unknown Broker")
	assert.False(t, ok)

	_, ok = Lookup("")
	assert.False(t, ok)
}

func TestEveryDetectedBrokerHasProfile(t *testing.T) {
	for _, r := range detectionRules {
		_, ok := Lookup(r.broker)
		assert.True(t, ok, "missing profile for %s", r.broker)
	}
}
