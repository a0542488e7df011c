package config

import (
	"time"

	"tradecore/internal/types"
)

// Config 是整个执行核心的配置载体，启动时一次性注入，运行期只读。
type Config struct {
	App       AppConfig       `toml:"app"`
	Policy    PolicyConfig    `toml:"policy"`
	Decision  DecisionConfig  `toml:"decision"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Store     StoreConfig     `toml:"store"`
	Controls  ControlsConfig  `toml:"controls"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	HTTPAddr    string `toml:"http_addr"`
	LogPath     string `toml:"log_path"`
	DumpPath    string `toml:"dump_path"`
	DumpPayload bool   `toml:"dump_payload"`
}

// PolicyConfig 承载风险策略：按市场姿态给定风险比例、杠杆上限与
// 过期窗口。显式注入，不走任何环境全局。
type PolicyConfig struct {
	RiskPctOK        float64 `toml:"risk_pct_ok"`
	RiskPctCaution   float64 `toml:"risk_pct_caution"`
	MaxLeverage      int     `toml:"max_leverage"`
	ExpiryMinMinutes int     `toml:"expiry_min_minutes"`
	ExpiryMaxMinutes int     `toml:"expiry_max_minutes"`
	MinTickMultiple  float64 `toml:"min_tick_multiple"`
	StaticEquityUSD  float64 `toml:"static_equity_usd"`
}

// RiskFraction 返回某个姿态下的默认风险比例，NO_TRADE 恒为 0。
func (p PolicyConfig) RiskFraction(posture types.Posture) float64 {
	switch posture {
	case types.PostureOK:
		return p.RiskPctOK
	case types.PostureCaution:
		return p.RiskPctCaution
	default:
		return 0
	}
}

// DecisionConfig 描述决策/选币服务边界。
type DecisionConfig struct {
	BaseURL        string      `toml:"base_url"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	Retry          RetryConfig `toml:"retry"`
}

// RetryConfig 把重试策略做成显式参数，可独立于业务逻辑测试。
type RetryConfig struct {
	MaxAttempts     int   `toml:"max_attempts"`
	BackoffBaseMS   int   `toml:"backoff_base_ms"`
	BackoffStepMS   int   `toml:"backoff_step_ms"`
	BackoffJitterMS int   `toml:"backoff_jitter_ms"`
	RetryableStatus []int `toml:"retryable_status"`
}

func (d DecisionConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

type ExchangeConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UsageLimit     int    `toml:"usage_limit"`
}

type ReconcileConfig struct {
	IntervalSeconds        int `toml:"interval_seconds"`
	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

func (r ReconcileConfig) Interval() time.Duration {
	if r.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.IntervalSeconds) * time.Second
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// ControlsConfig 指定操作员选择状态文件；watch 打开后由 fsnotify 热加载。
type ControlsConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}
