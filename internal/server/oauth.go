package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
)

// IdentityProvider: OAuth 코드를 (user_id, guild_memberships)로 교환하는
// 블랙박스 신원 검증기. 채팅 플랫폼의 OAuth 제공자를 감싼다.
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (*Identity, error)
	AuthURL(state string) string
}

// 채팅 플랫폼 OAuth 엔드포인트. 게이트웨이가 플랫폼과 같은 형식으로 노출한다.
const (
	oauthAuthURL     = "https://chat.example.com/oauth/authorize"
	oauthTokenURL    = "https://chat.example.com/oauth/token" //nolint:gosec // G101: URL일 뿐
	oauthIdentityURL = "https://chat.example.com/api/users/@me/guilds"
)

// OAuthProvider: x/oauth2 기반 IdentityProvider 구현체.
type OAuthProvider struct {
	oauth config.OAuthConfig
	conf  *oauth2.Config
}

// NewOAuthProvider: 설정으로 OAuth 신원 검증기를 생성합니다.
func NewOAuthProvider(cfg config.OAuthConfig) *OAuthProvider {
	return &OAuthProvider{
		oauth: cfg,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  oauthAuthURL,
				TokenURL: oauthTokenURL,
			},
		},
	}
}

// AuthURL: 로그인 리다이렉트 URL을 반환합니다.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// identityResponse: 플랫폼 신원 API의 응답 형식.
type identityResponse struct {
	UserID string `json:"user_id"`
	Guilds []struct {
		GuildID   string `json:"guild_id"`
		GuildName string `json:"guild_name"`
		IsAdmin   bool   `json:"is_admin"`
		CanManage bool   `json:"can_manage"`
	} `json:"guilds"`
}

// Exchange: 인가 코드를 플랫폼 토큰으로 교환하고 신원/길드 멤버십을 조회한다.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange failed: %w", err)
	}

	client := p.conf.Client(ctx, token)
	resp, err := client.Get(oauthIdentityURL)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity lookup returned status %d", resp.StatusCode)
	}

	var payload identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("identity decode failed: %w", err)
	}

	var userID int64
	if _, err := fmt.Sscanf(payload.UserID, "%d", &userID); err != nil {
		return nil, fmt.Errorf("malformed user id %q", payload.UserID)
	}

	identity := &Identity{
		UserID: userID,
		Guilds: make(map[string]GuildPermission, len(payload.Guilds)),
	}
	for _, g := range payload.Guilds {
		identity.Guilds[g.GuildID] = GuildPermission{
			IsAdmin:   g.IsAdmin,
			CanManage: g.CanManage,
			GuildName: g.GuildName,
		}
	}
	return identity, nil
}
