package binance

import (
	"errors"
	"regexp"
	"strconv"
	"sync"
	"time"

	"tradecore/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/common"
)

// 各端点权重，对应币安 fapi 文档标称值。本地累计用于展示与预警，
// 权威判定仍以交易所返回的 -1003/429 为准。
const (
	weightExchangeInfo = 1
	weightPremiumIndex = 10
	weightOpenOrders   = 40
	weightPositionRisk = 5
	weightBalance      = 5
	weightOrder        = 1
	weightLeverage     = 1
)

// weightMeter 以分钟窗口累计请求权重。
type weightMeter struct {
	mu          sync.Mutex
	windowStart time.Time
	used        int
	nowFn       func() time.Time
}

func newWeightMeter() *weightMeter {
	return &weightMeter{nowFn: time.Now}
}

func (m *weightMeter) add(weight int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn().UTC()
	window := now.Truncate(time.Minute)
	if !window.Equal(m.windowStart) {
		m.windowStart = window
		m.used = 0
	}
	m.used += weight
}

func (m *weightMeter) usedWeight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn().UTC()
	if !now.Truncate(time.Minute).Equal(m.windowStart) {
		return 0
	}
	return m.used
}

var banUntilRe = regexp.MustCompile(`banned until (\d{10,})`)

// classifyBan 识别限频封禁错误并提取解禁时间。
// -1003 带 "banned until <ms>"；429/418 同样按封禁处理，
// 消息里没有时间戳时给一个保守的一分钟冷却。
func classifyBan(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case -1003, 429, 418:
	default:
		return err
	}
	until := time.Now().Add(time.Minute)
	if m := banUntilRe.FindStringSubmatch(apiErr.Message); len(m) == 2 {
		if ms, parseErr := strconv.ParseInt(m[1], 10, 64); parseErr == nil {
			until = time.UnixMilli(ms)
		}
	}
	return &exchange.BanError{Until: until, Err: err}
}

// isAuthError 判断是否为凭据/权限类错误：-1002 未授权、
// -2014 API key 格式非法、-2015 key/IP/权限无效。
func isAuthError(err error) bool {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case -1002, -2014, -2015:
		return true
	default:
		return false
	}
}

// isUnknownOrder 判断是否为“订单已不存在”类错误（重复撤销等）。
func isUnknownOrder(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == -2011
	}
	return false
}

// isImmediateTrigger 判断条件单是否因标记价闸门被拒（会立刻触发）。
func isImmediateTrigger(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == -2021
	}
	return false
}
