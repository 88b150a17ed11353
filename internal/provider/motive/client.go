package motive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/langchou/fleetbridge/internal/provider"
)

const providerID = "motive"

const (
	perPage  = 100
	maxPages = 50
)

// Config Motive API 配置
type Config struct {
	ClientID     string
	ClientSecret string
	AuthHost     string // 默认 https://api.gomotive.com
	APIHost      string // 默认 https://api.gomotive.com
}

// Client Motive (KeepTruckin) API 客户端
// 分页方式：页码（page_no / per_page / total）
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	cfg          Config
	accessToken  string
	refreshToken string
}

// New 创建 Motive 客户端
func New(cfg Config) *Client {
	if cfg.AuthHost == "" {
		cfg.AuthHost = "https://api.gomotive.com"
	}
	if cfg.APIHost == "" {
		cfg.APIHost = "https://api.gomotive.com"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		cfg:     cfg,
	}
}

// ID 服务商标识
func (c *Client) ID() string { return providerID }

// Label 展示名称
func (c *Client) Label() string { return "Motive" }

// Capabilities 支持的能力集合
// Motive 不提供独立的加油记录接口
func (c *Client) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapVehicles,
		provider.CapDrivers,
		provider.CapGPS,
		provider.CapGPSHistory,
		provider.CapHOS,
		provider.CapIFTA,
		provider.CapFaultCodes,
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
	q.Set("scope", "vehicles.read drivers.read hos_logs.read locations.read ifta.read fault_codes.read")
	return c.cfg.AuthHost + "/oauth/authorize?" + q.Encode()
}

// ExchangeCode 用授权码交换令牌
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.Tokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
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
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	return c.tokenRequest(ctx, data)
}

func (c *Client) tokenRequest(ctx context.Context, data url.Values) (*provider.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.AuthHost+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
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

// pagination 页码分页元数据
type pagination struct {
	PerPage int `json:"per_page"`
	PageNo  int `json:"page_no"`
	Total   int `json:"total"`
}

// fetchAllPages 耗尽页码分页，将每页原始 JSON 交给 collect 回调
// collect 返回本页记录条数，用于判断是否还有下一页
func (c *Client) fetchAllPages(ctx context.Context, path string, query url.Values, collect func(body []byte) (int, error)) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(perPage))

	fetched := 0
	for page := 1; page <= maxPages; page++ {
		query.Set("page_no", strconv.Itoa(page))
		body, err := c.doRequest(ctx, path, query)
		if err != nil {
			return err
		}

		count, err := collect(body)
		if err != nil {
			return err
		}
		fetched += count

		var meta struct {
			Pagination pagination `json:"pagination"`
		}
		if err := json.Unmarshal(body, &meta); err != nil {
			return fmt.Errorf("decode pagination: %w", err)
		}
		if count == 0 || fetched >= meta.Pagination.Total {
			return nil
		}
	}
	return fmt.Errorf("pagination exceeded %d pages for %s", maxPages, path)
}

// VerifyConnection 校验连接有效性
func (c *Client) VerifyConnection(ctx context.Context) (*provider.VerifyResult, error) {
	body, err := c.doRequest(ctx, "/v1/companies", nil)
	if err != nil {
		if provider.IsAuthError(err) {
			return &provider.VerifyResult{Valid: false, ProviderLabel: c.Label()}, nil
		}
		return nil, err
	}

	var companies struct {
		Companies []struct {
			Company struct {
				Name string `json:"name"`
			} `json:"company"`
		} `json:"companies"`
	}
	if err := json.Unmarshal(body, &companies); err != nil {
		return nil, fmt.Errorf("decode companies: %w", err)
	}

	result := &provider.VerifyResult{Valid: true, ProviderLabel: c.Label()}
	if len(companies.Companies) > 0 {
		result.CompanyName = companies.Companies[0].Company.Name
	}
	return result, nil
}
