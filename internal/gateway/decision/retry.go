package decision

import (
	"math/rand"
	"time"

	"tradecore/internal/config"
)

// RetryPolicy 把“哪些状态码可重试、重试几次、退避多久”做成显式
// 参数，独立于业务逻辑单测。只有瞬态传输错误才会走到这里；
// decide/select/pick 的业务失败一律终止本轮，由外部重新触发。
type RetryPolicy struct {
	MaxAttempts     int
	RetryableStatus map[int]bool
	Backoff         func(attempt int) time.Duration
}

// NewRetryPolicy 由配置构造重试策略，退避为
// base + attempt*step + random(0, jitter)。
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	statuses := make(map[int]bool, len(cfg.RetryableStatus))
	for _, s := range cfg.RetryableStatus {
		statuses[s] = true
	}
	base := time.Duration(cfg.BackoffBaseMS) * time.Millisecond
	step := time.Duration(cfg.BackoffStepMS) * time.Millisecond
	jitter := time.Duration(cfg.BackoffJitterMS) * time.Millisecond
	return RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		RetryableStatus: statuses,
		Backoff: func(attempt int) time.Duration {
			wait := base + time.Duration(attempt)*step
			if jitter > 0 {
				wait += time.Duration(rand.Int63n(int64(jitter)))
			}
			return wait
		},
	}
}

func (p RetryPolicy) retryable(status int) bool {
	return p.RetryableStatus[status]
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}
