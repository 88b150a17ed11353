package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/langchou/fleetbridge/internal/provider"
)

const providerID = "terminal"

const maxPages = 50

// Config Terminal 聚合器配置
// Terminal 把 200+ 家 ELD 服务商统一到一套 REST 接口后面
type Config struct {
	PublicKey string // 发起 connect 流程用
	SecretKey string // 服务端 API 调用用
	APIHost   string // 默认 https://api.withterminal.com
}

// Client Terminal 聚合器客户端
// 所有请求经过熔断器：聚合器故障时快速失败而不是拖垮整个同步
type Client struct {
	httpClient      *http.Client
	limiter         *rate.Limiter
	breaker         *gobreaker.CircuitBreaker[[]byte]
	cfg             Config
	connectionToken string
}

// New 创建 Terminal 客户端
func New(cfg Config) *Client {
	if cfg.APIHost == "" {
		cfg.APIHost = "https://api.withterminal.com"
	}

	settings := gobreaker.Settings{
		Name:    "terminal",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		cfg:     cfg,
	}
}

// ID 服务商标识
func (c *Client) ID() string { return providerID }

// Label 展示名称
func (c *Client) Label() string { return "Terminal" }

// Capabilities 支持的能力集合
func (c *Client) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapVehicles,
		provider.CapDrivers,
		provider.CapGPS,
		provider.CapGPSHistory,
		provider.CapHOS,
		provider.CapIFTA,
		provider.CapFaultCodes,
		provider.CapWebhooks,
	}
}

// SetTokens 设置连接令牌
// Terminal 用长期有效的 connection token，refresh token 位置留空
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.connectionToken = accessToken
}

// AuthorizationURL 生成 Terminal Connect 流程地址
func (c *Client) AuthorizationURL(redirectURI, state string) string {
	q := url.Values{}
	q.Set("public_key", c.cfg.PublicKey)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return c.cfg.APIHost + "/connect?" + q.Encode()
}

// ExchangeCode 用 connect 回调返回的 public token 交换 connection token
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.Tokens, error) {
	payload, _ := json.Marshal(map[string]string{"publicToken": code})
	body, err := c.do(ctx, "POST", "/tokens/exchange", nil, payload, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ConnectionToken string `json:"connectionToken"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode token exchange: %w", err)
	}
	if resp.ConnectionToken == "" {
		return nil, &provider.AuthError{Provider: providerID, Message: "empty connection token in exchange response"}
	}

	c.connectionToken = resp.ConnectionToken
	// connection token 长期有效，按一年记过期时间
	return &provider.Tokens{AccessToken: resp.ConnectionToken, ExpiresIn: 365 * 24 * 3600}, nil
}

// RefreshTokens connection token 不需要刷新，原样返回
func (c *Client) RefreshTokens(ctx context.Context) (*provider.Tokens, error) {
	if c.connectionToken == "" {
		return nil, &provider.AuthError{Provider: providerID, Message: "no connection token available"}
	}
	return &provider.Tokens{AccessToken: c.connectionToken, ExpiresIn: 365 * 24 * 3600}, nil
}

// do 执行请求：限流 -> 熔断 -> HTTP
// authed 为 true 时带上 connection token 头
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, authed bool) ([]byte, error) {
	if authed && c.connectionToken == "" {
		return nil, &provider.AuthError{Provider: providerID, Message: "not authenticated"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.breaker.Execute(func() ([]byte, error) {
		u := c.cfg.APIHost + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
		if authed {
			req.Header.Set("Connection-Token", c.connectionToken)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", path, err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, provider.ErrorFromStatus(providerID, resp, string(body))
		}
		return body, nil
	})
}

// fetchAllPages 耗尽游标分页（cursor / next）
func (c *Client) fetchAllPages(ctx context.Context, path string, query url.Values, collect func(results json.RawMessage) error) error {
	if query == nil {
		query = url.Values{}
	}
	for page := 0; page < maxPages; page++ {
		body, err := c.do(ctx, "GET", path, query, nil, true)
		if err != nil {
			return err
		}
		var resp struct {
			Results json.RawMessage `json:"results"`
			Next    string          `json:"next"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode page: %w", err)
		}
		if err := collect(resp.Results); err != nil {
			return err
		}
		if resp.Next == "" {
			return nil
		}
		query.Set("cursor", resp.Next)
	}
	return fmt.Errorf("pagination exceeded %d pages for %s", maxPages, path)
}

// VerifyConnection 校验连接有效性
func (c *Client) VerifyConnection(ctx context.Context) (*provider.VerifyResult, error) {
	body, err := c.do(ctx, "GET", "/connections/current", nil, nil, true)
	if err != nil {
		if provider.IsAuthError(err) {
			return &provider.VerifyResult{Valid: false, ProviderLabel: c.Label()}, nil
		}
		return nil, err
	}

	var conn struct {
		CompanyName string `json:"companyName"`
		Provider    string `json:"provider"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(body, &conn); err != nil {
		return nil, fmt.Errorf("decode connection: %w", err)
	}

	label := c.Label()
	if conn.Provider != "" {
		// 透传底层服务商名称，方便用户识别实际接的是哪家 ELD
		label = fmt.Sprintf("%s (%s)", c.Label(), conn.Provider)
	}
	return &provider.VerifyResult{
		Valid:         conn.Status != "disconnected",
		CompanyName:   conn.CompanyName,
		ProviderLabel: label,
	}, nil
}

// ProviderInfo 聚合器底层服务商信息
type ProviderInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Beta  bool   `json:"beta"`
}

// ListProviders 列出聚合器支持的底层服务商目录
func (c *Client) ListProviders(ctx context.Context) ([]ProviderInfo, error) {
	var out []ProviderInfo
	err := c.fetchAllPages(ctx, "/providers", nil, func(results json.RawMessage) error {
		var page []ProviderInfo
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode providers: %w", err)
		}
		out = append(out, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SyncJob 聚合器侧的同步作业
type SyncJob struct {
	ID     string `json:"id"`
	Status string `json:"status"` // pending, in_progress, completed, failed
}

// CreateSyncJob 请求聚合器从底层服务商拉取最新数据
func (c *Client) CreateSyncJob(ctx context.Context, days int) (*SyncJob, error) {
	payload, _ := json.Marshal(map[string]int{"historicalDays": days})
	body, err := c.do(ctx, "POST", "/syncs", nil, payload, true)
	if err != nil {
		return nil, err
	}
	var job SyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode sync job: %w", err)
	}
	return &job, nil
}

// GetSyncJob 查询同步作业状态
func (c *Client) GetSyncJob(ctx context.Context, jobID string) (*SyncJob, error) {
	body, err := c.do(ctx, "GET", "/syncs/"+jobID, nil, nil, true)
	if err != nil {
		return nil, err
	}
	var job SyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode sync job: %w", err)
	}
	return &job, nil
}

// Passthrough 原样转发未映射的底层服务商调用
func (c *Client) Passthrough(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	return c.do(ctx, method, "/passthrough"+path, nil, payload, true)
}
