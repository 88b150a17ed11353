package connection

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StateTTL OAuth state 令牌有效期
const StateTTL = 30 * time.Minute

// OAuthState OAuth 授权流程中回传的防伪 state
type OAuthState struct {
	UserID     int64     `json:"user_id"`
	ProviderID string    `json:"provider_id"`
	Nonce      string    `json:"nonce"`
	IssuedAt   time.Time `json:"issued_at"`
}

// NewState 生成 state 令牌
func NewState(userID int64, providerID string) (string, error) {
	s := OAuthState{
		UserID:     userID,
		ProviderID: providerID,
		Nonce:      uuid.NewString(),
		IssuedAt:   time.Now(),
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// ParseState 解析并校验 state 令牌
// 超过 StateTTL 的 state 视为过期，防止重放
func ParseState(token string) (*OAuthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}
	var s OAuthState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal oauth state: %w", err)
	}
	if s.UserID == 0 || s.ProviderID == "" || s.Nonce == "" {
		return nil, fmt.Errorf("incomplete oauth state")
	}
	if time.Since(s.IssuedAt) > StateTTL {
		return nil, fmt.Errorf("oauth state expired")
	}
	return &s, nil
}
