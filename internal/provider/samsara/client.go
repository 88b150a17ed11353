package samsara

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/langchou/fleetbridge/internal/provider"
)

const providerID = "samsara"

// 分页安全上限，防止游标异常导致死循环
const maxPages = 50

// Config Samsara API 配置
type Config struct {
	ClientID     string
	ClientSecret string
	AuthHost     string // 默认 https://api.samsara.com
	APIHost      string // 默认 https://api.samsara.com
}

// Client Samsara API 客户端
// 分页方式：游标（endCursor / hasNextPage）
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	cfg          Config
	accessToken  string
	refreshToken string
}

// New 创建 Samsara 客户端
func New(cfg Config) *Client {
	if cfg.AuthHost == "" {
		cfg.AuthHost = "https://api.samsara.com"
	}
	if cfg.APIHost == "" {
		cfg.APIHost = "https://api.samsara.com"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Samsara 限流约 25 req/s，客户端侧保守一些
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		cfg:     cfg,
	}
}

// ID 服务商标识
func (c *Client) ID() string { return providerID }

// Label 展示名称
func (c *Client) Label() string { return "Samsara" }

// Capabilities 支持的能力集合
func (c *Client) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapVehicles,
		provider.CapDrivers,
		provider.CapGPS,
		provider.CapGPSFeed,
		provider.CapGPSHistory,
		provider.CapHOS,
		provider.CapIFTA,
		provider.CapFaultCodes,
		provider.CapFuelPurchases,
		provider.CapWebhooks,
	}
}

// SetTokens 设置当前令牌
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

// AuthorizationURL 生成 OAuth 授权地址
func (c *Client) AuthorizationURL(redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return c.cfg.AuthHost + "/oauth2/authorize?" + q.Encode()
}

// ExchangeCode 用授权码交换令牌
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.Tokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	return c.tokenRequest(ctx, data)
}

// RefreshTokens 刷新访问令牌
func (c *Client) RefreshTokens(ctx context.Context) (*provider.Tokens, error) {
	if c.refreshToken == "" {
		return nil, &provider.AuthError{Provider: providerID, Message: "no refresh token available"}
	}
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", c.refreshToken)
	return c.tokenRequest(ctx, data)
}

// tokenRequest 调用 token 端点
func (c *Client) tokenRequest(ctx context.Context, data url.Values) (*provider.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.AuthHost+"/oauth2/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		// token 端点的 400/401 都视为认证失败
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, &provider.AuthError{Provider: providerID, Message: string(body)}
		}
		return nil, provider.ErrorFromStatus(providerID, resp, string(body))
	}

	var tokens provider.Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	c.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		c.refreshToken = tokens.RefreshToken
	}
	return &tokens, nil
}

// doRequest 执行带认证的 GET 请求
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.accessToken == "" {
		return nil, &provider.AuthError{Provider: providerID, Message: "not authenticated"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.cfg.APIHost + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, provider.ErrorFromStatus(providerID, resp, string(body))
	}
	return body, nil
}

// pagedResponse 游标分页响应外层
type pagedResponse struct {
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		EndCursor   string `json:"endCursor"`
		HasNextPage bool   `json:"hasNextPage"`
	} `json:"pagination"`
}

// fetchAllPages 耗尽游标分页，将每页 data 交给 collect 回调
func (c *Client) fetchAllPages(ctx context.Context, path string, query url.Values, collect func(data json.RawMessage) error) error {
	if query == nil {
		query = url.Values{}
	}
	for page := 0; page < maxPages; page++ {
		body, err := c.doRequest(ctx, path, query)
		if err != nil {
			return err
		}
		var resp pagedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode page: %w", err)
		}
		if err := collect(resp.Data); err != nil {
			return err
		}
		if !resp.Pagination.HasNextPage || resp.Pagination.EndCursor == "" {
			return nil
		}
		query.Set("after", resp.Pagination.EndCursor)
	}
	return fmt.Errorf("pagination exceeded %d pages for %s", maxPages, path)
}

// VerifyConnection 校验连接有效性
// token 无效返回 Valid=false 而不是错误
func (c *Client) VerifyConnection(ctx context.Context) (*provider.VerifyResult, error) {
	body, err := c.doRequest(ctx, "/me", nil)
	if err != nil {
		if provider.IsAuthError(err) {
			return &provider.VerifyResult{Valid: false, ProviderLabel: c.Label()}, nil
		}
		return nil, err
	}

	var me struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("decode me response: %w", err)
	}
	return &provider.VerifyResult{Valid: true, CompanyName: me.Data.Name, ProviderLabel: c.Label()}, nil
}
