package binance

import (
	"errors"
	"testing"
	"time"

	"tradecore/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBanExtractsUntil(t *testing.T) {
	err := classifyBan(&common.APIError{
		Code:    -1003,
		Message: "Way too many requests; IP banned until 1767225600000.",
	})
	var ban *exchange.BanError
	require.ErrorAs(t, err, &ban)
	assert.Equal(t, time.UnixMilli(1767225600000), ban.Until)
}

func TestClassifyBanFallbackCooldown(t *testing.T) {
	before := time.Now()
	err := classifyBan(&common.APIError{Code: 429, Message: "too many requests"})
	var ban *exchange.BanError
	require.ErrorAs(t, err, &ban)
	assert.True(t, ban.Until.After(before), "无时间戳时给保守冷却")
}

func TestClassifyBanPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("conn reset")
	assert.Equal(t, plain, classifyBan(plain))

	apiErr := &common.APIError{Code: -2011, Message: "Unknown order sent."}
	assert.Equal(t, error(apiErr), classifyBan(apiErr))
	assert.True(t, isUnknownOrder(apiErr))
	assert.False(t, isImmediateTrigger(apiErr))
}

func TestWeightMeterResetsEachMinute(t *testing.T) {
	m := newWeightMeter()
	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	m.nowFn = func() time.Time { return now }

	m.add(40)
	m.add(5)
	assert.Equal(t, 45, m.usedWeight())

	now = now.Add(time.Minute)
	assert.Equal(t, 0, m.usedWeight(), "跨分钟窗口后归零")
	m.add(1)
	assert.Equal(t, 1, m.usedWeight())
}
