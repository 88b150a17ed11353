package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrNotSupported 服务商不支持该能力
var ErrNotSupported = errors.New("capability not supported by provider")

// AuthError 认证失败（凭证无效或已过期）
// 编排器收到该错误后应触发一次 token 刷新并重试
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// RateLimitError 触发服务商限流
// RetryAfter 为服务商建议的等待时间，调用方应延后而不是直接失败
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry after %s", e.Provider, e.RetryAfter)
}

// APIError 服务商返回非 2xx 响应
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%s): status=%d %s", e.Provider, e.StatusCode, e.Message)
}

// ValidationError 记录形状不合法，跳过该条记录
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

// MappingError 无法解析到本地实体，跳过该条记录
type MappingError struct {
	EntityType string
	ExternalID string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("no local %s mapped for external id %s", e.EntityType, e.ExternalID)
}

// IsAuthError 判断是否为认证错误
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimitError 判断是否为限流错误，并返回建议的等待时间
func IsRateLimitError(err error) (time.Duration, bool) {
	var re *RateLimitError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}

// ErrorFromStatus 根据 HTTP 状态码构造对应的错误类型
// 401 -> AuthError，429 -> RateLimitError（读取 Retry-After），其他 -> APIError
func ErrorFromStatus(providerID string, resp *http.Response, body string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &AuthError{Provider: providerID, Message: body}
	case http.StatusTooManyRequests:
		retryAfter := 60 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{Provider: providerID, RetryAfter: retryAfter}
	default:
		return &APIError{Provider: providerID, StatusCode: resp.StatusCode, Message: body}
	}
}
