package http

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/pkg/circuitbreaker"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client 是带熔断保护的 HTTP 客户端，用于向外部平台投递消息。
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewClient 创建客户端。熔断未启用时直接使用 http.Client。
func NewClient(cfg config.CircuitBreakerConfig, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{httpClient: &http.Client{Timeout: timeout}}
	if cfg.Enabled {
		c.breaker = circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, time.Duration(cfg.OpenSeconds)*time.Second)
	}
	return c
}

// Do 执行请求。状态码 >= 500 计为失败。熔断打开时返回 circuitbreaker.ErrCircuitOpen。
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	err := c.breaker.Do(func() error {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("server error: received status code %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return resp, nil
}

// PostJSON 以 JSON 发送 body，非 2xx 的响应视为错误。
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
