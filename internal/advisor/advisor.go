// Package advisor asks an OpenAI 兼容模型 for a short second opinion on a
// finished decision cycle. The verdict is advisory only and never changes
// what the engine already decided.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aurum/internal/logger"
)

const systemPrompt = `你是一名 A 股黄金板块的量化交易复盘助手。` +
	`根据给出的决策周期摘要，用不超过三句话点评该操作的合理性与风险。只输出点评文本。`

// ChatClient 兼容 OpenAI / DeepSeek / Qwen 的 /v1/chat/completions 接口。
type ChatClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// 429/5xx 有限重试，0 表示默认 2 次
	MaxRetries   int
	ExtraHeaders map[string]string
}

// Enabled reports whether the client is configured enough to call out.
func (c *ChatClient) Enabled() bool {
	return c != nil && c.Model != "" && c.APIKey != ""
}

// Review returns the model's commentary for a cycle summary.
func (c *ChatClient) Review(ctx context.Context, summary string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("advisor: not configured")
	}
	return c.call(ctx, systemPrompt, summary)
}

func (c *ChatClient) call(ctx context.Context, system, user string) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	// 规范化 BaseURL，容忍用户把完整 /chat/completions 写进配置
	url := c.BaseURL
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	url = url + "/chat/completions"

	messages := []map[string]string{
		{"role": "system", "content": system},
		{"role": "user", "content": user},
	}
	body, _ := json.Marshal(map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": 0.5,
	})

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("advisor: empty choices")
			}
			return strings.TrimSpace(r.Choices[0].Message.Content), nil
		}

		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		retryAfter := resp.Header.Get("Retry-After")
		resp.Body.Close()

		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("advisor: status=%d: %s", resp.StatusCode, msg)
		if !retryable(resp.StatusCode) || attempt == maxRetries {
			return "", lastErr
		}

		wait := backoff(attempt, retryAfter)
		logger.Debugf("advisor 重试 attempt=%d wait=%s: %v", attempt+1, wait, lastErr)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func backoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := 800 * time.Millisecond << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}
