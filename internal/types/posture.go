package types

import "strings"

// Posture 表示整体市场风险姿态，决定默认风险比例与执行闸门。
type Posture string

const (
	PostureOK      Posture = "OK"
	PostureCaution Posture = "CAUTION"
	PostureNoTrade Posture = "NO_TRADE"
)

func ParsePosture(raw string) (Posture, bool) {
	switch strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "OK":
		return PostureOK, true
	case "CAUTION":
		return PostureCaution, true
	case "NO_TRADE", "NOTRADE":
		return PostureNoTrade, true
	default:
		return "", false
	}
}

func (p Posture) Valid() bool {
	return p == PostureOK || p == PostureCaution || p == PostureNoTrade
}

// Tradeable 为 false 时禁止任何下单动作。
func (p Posture) Tradeable() bool {
	return p == PostureOK || p == PostureCaution
}
