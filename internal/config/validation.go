package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config 为空")
	}
	if strings.TrimSpace(cfg.Decision.BaseURL) == "" {
		return fmt.Errorf("decision.base_url 不能为空")
	}
	if cfg.Policy.RiskPctOK >= 0.1 || cfg.Policy.RiskPctCaution >= 0.1 {
		return fmt.Errorf("policy 风险比例异常（>=10%%）: ok=%v caution=%v",
			cfg.Policy.RiskPctOK, cfg.Policy.RiskPctCaution)
	}
	if cfg.Policy.RiskPctCaution > cfg.Policy.RiskPctOK {
		return fmt.Errorf("policy.risk_pct_caution 不应高于 risk_pct_ok")
	}
	if cfg.Policy.ExpiryMinMinutes > cfg.Policy.ExpiryMaxMinutes {
		return fmt.Errorf("policy 过期窗口非法: [%d, %d]",
			cfg.Policy.ExpiryMinMinutes, cfg.Policy.ExpiryMaxMinutes)
	}
	for _, status := range cfg.Decision.Retry.RetryableStatus {
		if status < 100 || status > 599 {
			return fmt.Errorf("decision.retry.retryable_status 含非法状态码: %d", status)
		}
	}
	return nil
}
