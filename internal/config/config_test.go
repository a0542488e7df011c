package config

import (
	"os"
	"path/filepath"
	"testing"

	"tradecore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
decision:
  base_url: http://127.0.0.1:9980
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9982", cfg.App.HTTPAddr)
	assert.Equal(t, 0.005, cfg.Policy.RiskPctOK)
	assert.Equal(t, []int{502, 503, 504}, cfg.Decision.Retry.RetryableStatus)
	assert.Equal(t, 5, cfg.Reconcile.IntervalSeconds)
	assert.Equal(t, 2400, cfg.Exchange.UsageLimit)
}

func TestLoadRejectsMissingBaseURL(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvertedExpiryWindow(t *testing.T) {
	path := writeConfig(t, `
decision:
  base_url: http://127.0.0.1:9980
policy:
  expiry_min_minutes: 300
  expiry_max_minutes: 60
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestRiskFractionByPosture(t *testing.T) {
	p := PolicyConfig{RiskPctOK: 0.005, RiskPctCaution: 0.0025}
	assert.Equal(t, 0.005, p.RiskFraction(types.PostureOK))
	assert.Equal(t, 0.0025, p.RiskFraction(types.PostureCaution))
	assert.Equal(t, 0.0, p.RiskFraction(types.PostureNoTrade), "NO_TRADE 风险恒为 0")
}
