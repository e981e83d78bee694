package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/broady/restproxy"
	"github.com/joeshaw/envdecode"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Bearer creates a filter that sets "Authorization: Bearer <token>" from
// ts. Requests that already carry an Authorization header are left alone,
// and an empty access token sends no header. Token errors abort the
// exchange.
func Bearer(ts oauth2.TokenSource) restproxy.ExchangeFilter {
	return func(ctx context.Context, req *restproxy.RequestDescriptor, next restproxy.ExchangeFunc) (*http.Response, error) {
		if req.Header.Get("Authorization") != "" {
			return next(ctx, req)
		}
		tok, err := ts.Token()
		if err != nil {
			return nil, fmt.Errorf("middleware: bearer token: %w", err)
		}
		if tok != nil && tok.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		}
		return next(ctx, req)
	}
}

// ClientCredentialsConfig configures the OAuth2 client credentials grant.
type ClientCredentialsConfig struct {
	// TokenURL of the authorization server. ENV: RESTPROXY_OAUTH2_TOKEN_URL
	TokenURL string `env:"RESTPROXY_OAUTH2_TOKEN_URL"`
	// ClientID. ENV: RESTPROXY_OAUTH2_CLIENT_ID
	ClientID string `env:"RESTPROXY_OAUTH2_CLIENT_ID"`
	// ClientSecret. ENV: RESTPROXY_OAUTH2_CLIENT_SECRET
	ClientSecret string `env:"RESTPROXY_OAUTH2_CLIENT_SECRET"`
	// Scopes, separated by semicolons. ENV: RESTPROXY_OAUTH2_SCOPES
	Scopes []string `env:"RESTPROXY_OAUTH2_SCOPES"`
}

// ClientCredentialsFromEnv reads a ClientCredentialsConfig from the environment.
func ClientCredentialsFromEnv() (ClientCredentialsConfig, error) {
	var cfg ClientCredentialsConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("middleware: load client credentials: %w", err)
	}
	return cfg, nil
}

// ClientCredentials returns a token source for cfg that caches tokens until
// they expire. ctx carries the *http.Client used to fetch tokens (see
// oauth2.HTTPClient) and should outlive the token source.
func ClientCredentials(ctx context.Context, cfg ClientCredentialsConfig) (oauth2.TokenSource, error) {
	if cfg.TokenURL == "" || cfg.ClientID == "" {
		return nil, errors.New("middleware: client credentials need a token URL and client id")
	}
	scopes := make([]string, 0, len(cfg.Scopes))
	for _, s := range cfg.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       scopes,
	}
	return oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx)), nil
}
