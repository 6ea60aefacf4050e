package channel

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/stridehq/stride/utils"
)

// CredentialResolver resolves the per-project access credential for a
// provider via the OAuth2 client-credentials flow. Tokens are cached in Redis
// keyed by (provider, project) with an expiry-aware TTL; an in-process cache
// covers Redis outages.
type CredentialResolver struct {
	Provider     string
	TokenURL     string
	ClientID     string
	ClientSecret string

	mu    sync.Mutex
	cache map[uint]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// NewCredentialResolver builds a resolver; an empty token URL means the
// provider needs no credential and Token returns "".
func NewCredentialResolver(provider, tokenURL, clientID, clientSecret string) *CredentialResolver {
	return &CredentialResolver{
		Provider:     provider,
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		cache:        map[uint]cachedToken{},
	}
}

// Token returns a bearer token for the given project.
func (r *CredentialResolver) Token(ctx context.Context, projectID uint) (string, error) {
	if r.TokenURL == "" {
		return "", nil
	}

	cacheKey := fmt.Sprintf("channel:token:%s:%d", r.Provider, projectID)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		return string(b), nil
	}

	r.mu.Lock()
	if cached, ok := r.cache[projectID]; ok && time.Now().Before(cached.expiresAt) {
		r.mu.Unlock()
		return cached.token, nil
	}
	r.mu.Unlock()

	conf := &clientcredentials.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		TokenURL:     r.TokenURL,
		EndpointParams: url.Values{
			"provider":   {r.Provider},
			"project_id": {strconv.FormatUint(uint64(projectID), 10)},
		},
	}
	tok, err := conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve channel credential for project %d: %w", projectID, err)
	}

	ttl := time.Until(tok.Expiry) - 30*time.Second
	if ttl > 0 {
		utils.CacheSetBytes(cacheKey, []byte(tok.AccessToken), ttl)
	}
	r.mu.Lock()
	r.cache[projectID] = cachedToken{token: tok.AccessToken, expiresAt: tok.Expiry.Add(-30 * time.Second)}
	r.mu.Unlock()

	return tok.AccessToken, nil
}
