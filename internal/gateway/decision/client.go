// Package decision wraps the decision/candidate-selection service
// boundary: market snapshot, market decision and the final picker.
package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/logger"
	"tradecore/internal/types"

	"github.com/tidwall/gjson"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	retry      RetryPolicy
	timeout    time.Duration
}

func NewClient(cfg config.DecisionConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("decision.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 decision.base_url 失败: %w", err)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		retry:      NewRetryPolicy(cfg.Retry),
		timeout:    cfg.Timeout(),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetRetryPolicy 覆盖重试策略（测试用，去掉随机抖动）。
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// Snapshot 拉取行情快照。
func (c *Client) Snapshot(ctx context.Context) (MarketSnapshot, error) {
	body, err := c.doCall(ctx, "snapshot", http.MethodGet, "/snapshot", nil)
	if err != nil {
		return MarketSnapshot{}, err
	}
	var snap MarketSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return MarketSnapshot{}, &CallError{Stage: "snapshot", Kind: KindInvalidJSON, Err: err}
	}
	return snap, nil
}

// Decide 请求市场裁决。非 2xx 不报错，而是强制 NO_TRADE 并附
// 原因 gpt_error:http。决策失败时的默认动作必须是不交易。
func (c *Client) Decide(ctx context.Context, view CompactView) (MarketDecision, error) {
	body, err := c.doCall(ctx, "decide", http.MethodPost, "/decide", view)
	if err != nil {
		var ce *CallError
		if errors.As(err, &ce) && ce.Kind == KindHTTP {
			logger.Warnf("decision: decide http 失败，降级为 NO_TRADE: %v", err)
			return MarketDecision{
				Flag:    "NO-TRADE",
				Posture: types.PostureNoTrade,
				Reasons: []string{"gpt_error:http"},
			}, nil
		}
		return MarketDecision{}, err
	}
	if !gjson.ValidBytes(body) {
		return MarketDecision{}, &CallError{Stage: "decide", Kind: KindInvalidJSON, Err: fmt.Errorf("响应非合法 json")}
	}
	var dec MarketDecision
	if err := json.Unmarshal(body, &dec); err != nil {
		return MarketDecision{}, &CallError{Stage: "decide", Kind: KindInvalidJSON, Err: err}
	}
	posture, ok := types.ParsePosture(gjson.GetBytes(body, "posture").String())
	if !ok {
		posture, ok = types.ParsePosture(dec.Flag)
	}
	if !ok {
		return MarketDecision{}, &CallError{Stage: "decide", Kind: KindSchema,
			Err: fmt.Errorf("无法识别 posture/flag: %q", dec.Flag)}
	}
	dec.Posture = posture
	return dec, nil
}

// FinalPicker 调用最终选币服务并做 invalid_json/schema 两级校验。
func (c *Client) FinalPicker(ctx context.Context, input PickerInput) (PickerResult, error) {
	body, err := c.doCall(ctx, "final_picker", http.MethodPost, "/final-picker", input)
	if err != nil {
		return PickerResult{}, err
	}
	if !gjson.ValidBytes(body) {
		return PickerResult{}, &CallError{Stage: "final_picker", Kind: KindInvalidJSON,
			Err: fmt.Errorf("响应非合法 json")}
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return PickerResult{}, &CallError{Stage: "final_picker", Kind: KindInvalidJSON, Err: err}
	}
	if err := pickerSchema.Validate(decoded); err != nil {
		return PickerResult{}, &CallError{Stage: "final_picker", Kind: KindSchema, Err: err}
	}

	var envelope struct {
		OK        bool           `json:"ok"`
		Code      string         `json:"code"`
		LatencyMS int64          `json:"latency_ms"`
		Meta      map[string]any `json:"meta"`
		Data      struct {
			Picks []types.FinalPick `json:"picks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return PickerResult{}, &CallError{Stage: "final_picker", Kind: KindInvalidJSON, Err: err}
	}
	if !envelope.OK {
		kind := ErrKind(strings.TrimSpace(envelope.Code))
		switch kind {
		case KindTimeout, KindHTTP, KindInvalidJSON, KindSchema, KindPostValidation:
		default:
			kind = KindUnknown
		}
		return PickerResult{}, &CallError{Stage: "final_picker", Kind: kind,
			Err: fmt.Errorf("选币服务返回失败 code=%s", envelope.Code)}
	}
	return PickerResult{
		OK:        envelope.OK,
		Code:      envelope.Code,
		LatencyMS: envelope.LatencyMS,
		Picks:     envelope.Data.Picks,
		Meta:      envelope.Meta,
	}, nil
}

func (c *Client) doCall(ctx context.Context, stage, method, path string, payload any) ([]byte, error) {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path

	var reqBody []byte
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, &CallError{Stage: stage, Kind: KindUnknown, Err: fmt.Errorf("序列化请求失败: %w", err)}
		}
		reqBody = buf
		logger.DumpPayload(stage, "request", string(buf))
	}

	start := time.Now()
	attempts := c.retry.attempts()
	var lastErr *CallError
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.retry.Backoff(attempt)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &CallError{Stage: stage, Kind: KindTimeout, Latency: time.Since(start), Err: ctx.Err()}
			case <-timer.C:
			}
		}
		body, status, err := c.once(ctx, method, endpoint.String(), reqBody)
		if err != nil {
			if isTimeout(err) {
				return nil, &CallError{Stage: stage, Kind: KindTimeout, Latency: time.Since(start), Err: err}
			}
			// 连接级失败按瞬态处理，允许重试，耗尽后归类为 http
			lastErr = &CallError{Stage: stage, Kind: KindHTTP, Latency: time.Since(start), Err: err}
			continue
		}
		if status >= 200 && status < 300 {
			logger.DumpPayload(stage, "response", string(body))
			return body, nil
		}
		httpErr := &CallError{Stage: stage, Kind: KindHTTP, Status: status, Latency: time.Since(start),
			Err: fmt.Errorf("http status %d: %s", status, truncate(body, 200))}
		if c.retry.retryable(status) {
			lastErr = httpErr
			continue
		}
		return nil, httpErr
	}
	if lastErr == nil {
		lastErr = &CallError{Stage: stage, Kind: KindUnknown, Latency: time.Since(start)}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, endpoint, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
