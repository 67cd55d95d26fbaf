package broker

import "strings"

// Broker identifiers. These are the values stored on trades.
const (
	GMOClick   = "GMOクリック証券"
	DMMFX      = "DMM FX"
	SBIFX      = "SBI FXトレード"
	Gaitame    = "外為どっとコム"
	MinnanoFX  = "みんなのFX"
	RakutenFX  = "楽天証券"
	MonexFX    = "マネックス証券"
	HiroseFX   = "ヒロセ通商"
	MatsuiFX   = "松井証券"
	OANDA      = "OANDA"
	XMTrading  = "XM"
	IGSecurity = "IG"
	SaxoBank   = "Saxo"
)

// rule maps a lowercase fragment of the sender address or display name to a broker.
type rule struct {
	fragment string
	broker   string
}

// detectionRules is evaluated top to bottom and the first hit wins.
// More specific fragments sit above the generic ones they contain
// (e.g. "fx.dmm.com" before "dmm"), so the order must not be changed casually.
var detectionRules = []rule{
	{"click-sec.com", GMOClick},
	{"gmo", GMOClick},
	{"fx.dmm.com", DMMFX},
	{"dmm.com", DMMFX},
	{"sbifxt.co.jp", SBIFX},
	{"gaitame.com", Gaitame},
	{"min-fx.jp", MinnanoFX},
	{"traderssec.co.jp", MinnanoFX},
	{"rakuten-sec.co.jp", RakutenFX},
	{"monex.co.jp", MonexFX},
	{"hirose-fx.co.jp", HiroseFX},
	{"matsui.co.jp", MatsuiFX},
	{"oanda.com", OANDA},
	{"oanda", OANDA},
	{"xmtrading.com", XMTrading},
	{"xm.com", XMTrading},
	{"ig.com", IGSecurity},
	{"home.saxo", SaxoBank},
	{"saxobank", SaxoBank},
	{"クリック証券", GMOClick},
	{"dmm", DMMFX},
	{"外為どっとコム", Gaitame},
	{"みんなのfx", MinnanoFX},
	{"楽天", RakutenFX},
	{"ヒロセ", HiroseFX},
}

// Detect maps a sender address and optional display name to a broker identifier.
// It returns "" when no rule matches; callers then fall back to generic unit parsing.
func Detect(sender, displayName string) string {
	haystacks := []string{strings.ToLower(sender), strings.ToLower(displayName)}
	for _, r := range detectionRules {
		for _, h := range haystacks {
			if h != "" && strings.Contains(h, r.fragment) {
				return r.broker
			}
		}
	}
	return ""
}

// Profile describes how a broker expresses position size.
// Multiplier converts one broker-native unit into standard lots (1.0 = 100,000 base units).
type Profile struct {
	Name       string
	Multiplier float64
	UnitLabel  string
}

var profiles = []Profile{
	{GMOClick, 0.1, "Lot"},
	{DMMFX, 0.1, "Lot"},
	{SBIFX, 0.00001, "通貨"},
	{Gaitame, 0.01, "Lot"},
	{MinnanoFX, 0.1, "Lot"},
	{RakutenFX, 0.1, "Lot"},
	{MonexFX, 0.1, "Lot"},
	{HiroseFX, 0.01, "Lot"},
	{MatsuiFX, 0.00001, "通貨"},
	{OANDA, 1.0, "lot"},
	{XMTrading, 1.0, "lot"},
	{IGSecurity, 1.0, "lot"},
	{SaxoBank, 1.0, "lot"},
}

// Lookup returns the profile registered for a broker.
func Lookup(name string) (Profile, bool) {
	if name == "" {
		return Profile{}, false
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Profiles returns a copy of the reference table in its fixed order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}
