package config

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9982"
	defaultDecisionTimeout  = 30
	defaultRetryAttempts    = 3
	defaultBackoffBaseMS    = 200
	defaultBackoffStepMS    = 300
	defaultBackoffJitterMS  = 200
	defaultExchangeREST     = "https://fapi.binance.com"
	defaultExchangeTimeout  = 10
	defaultUsageLimit       = 2400
	defaultReconcileSeconds = 5
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 120
	defaultRiskPctOK        = 0.005
	defaultRiskPctCaution   = 0.0025
	defaultMaxLeverage      = 20
	defaultExpiryMin        = 15
	defaultExpiryMax        = 240
	defaultMinTickMultiple  = 5
	defaultStorePath        = "data/tradecore.db"
	defaultControlsPath     = "configs/controls.yaml"
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if c.Policy.RiskPctOK <= 0 {
		c.Policy.RiskPctOK = defaultRiskPctOK
	}
	if c.Policy.RiskPctCaution <= 0 {
		c.Policy.RiskPctCaution = defaultRiskPctCaution
	}
	if c.Policy.MaxLeverage <= 0 {
		c.Policy.MaxLeverage = defaultMaxLeverage
	}
	if c.Policy.ExpiryMinMinutes <= 0 {
		c.Policy.ExpiryMinMinutes = defaultExpiryMin
	}
	if c.Policy.ExpiryMaxMinutes <= 0 {
		c.Policy.ExpiryMaxMinutes = defaultExpiryMax
	}
	if c.Policy.MinTickMultiple <= 0 {
		c.Policy.MinTickMultiple = defaultMinTickMultiple
	}
	if c.Decision.TimeoutSeconds <= 0 {
		c.Decision.TimeoutSeconds = defaultDecisionTimeout
	}
	if c.Decision.Retry.MaxAttempts <= 0 {
		c.Decision.Retry.MaxAttempts = defaultRetryAttempts
	}
	if c.Decision.Retry.BackoffBaseMS <= 0 {
		c.Decision.Retry.BackoffBaseMS = defaultBackoffBaseMS
	}
	if c.Decision.Retry.BackoffStepMS <= 0 {
		c.Decision.Retry.BackoffStepMS = defaultBackoffStepMS
	}
	if c.Decision.Retry.BackoffJitterMS <= 0 {
		c.Decision.Retry.BackoffJitterMS = defaultBackoffJitterMS
	}
	if len(c.Decision.Retry.RetryableStatus) == 0 {
		c.Decision.Retry.RetryableStatus = []int{502, 503, 504}
	}
	if c.Exchange.RESTBaseURL == "" {
		c.Exchange.RESTBaseURL = defaultExchangeREST
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = defaultExchangeTimeout
	}
	if c.Exchange.UsageLimit <= 0 {
		c.Exchange.UsageLimit = defaultUsageLimit
	}
	if c.Reconcile.IntervalSeconds <= 0 {
		c.Reconcile.IntervalSeconds = defaultReconcileSeconds
	}
	if c.Reconcile.BreakerThreshold <= 0 {
		c.Reconcile.BreakerThreshold = defaultBreakerThreshold
	}
	if c.Reconcile.BreakerCooldownSeconds <= 0 {
		c.Reconcile.BreakerCooldownSeconds = defaultBreakerCooldown
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Controls.Path == "" {
		c.Controls.Path = defaultControlsPath
	}
}
