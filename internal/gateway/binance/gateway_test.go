package binance

import (
	"context"
	"testing"

	"tradecore/internal/config"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleWithoutCredentialsReturnsEmptySnapshot(t *testing.T) {
	g, err := New(config.ExchangeConfig{UsageLimit: 2400})
	require.NoError(t, err)

	snap, err := g.Console(context.Background())
	require.NoError(t, err, "没有凭据就是没有用户数据，不是错误")
	assert.Empty(t, snap.OpenOrders)
	assert.Empty(t, snap.Positions)
	assert.Empty(t, snap.Waiting)
	assert.Equal(t, 2400, snap.Usage.Limit)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestConsoleWithCredentialsFlag(t *testing.T) {
	g, err := New(config.ExchangeConfig{APIKey: "k", APISecret: "s"})
	require.NoError(t, err)
	assert.True(t, g.hasCreds)

	// 只配了 key 没配 secret 同样按无凭据处理
	g, err = New(config.ExchangeConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.False(t, g.hasCreds)
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, isAuthError(&common.APIError{Code: -2015, Message: "Invalid API-key, IP, or permissions for action."}))
	assert.True(t, isAuthError(&common.APIError{Code: -2014, Message: "API-key format invalid."}))
	assert.True(t, isAuthError(&common.APIError{Code: -1002, Message: "You are not authorized to execute this request."}))
	assert.False(t, isAuthError(&common.APIError{Code: -1003, Message: "Too many requests."}))
	assert.False(t, isAuthError(assert.AnError))
}
