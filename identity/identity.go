// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package identity obtains service tokens from the node's identity
// provider via the OIDC client-credentials grant, and decides whether
// the externally configured provider is the node-internal one.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrTokenURLEmpty    = errors.New("identity provider token URL is required")
	ErrClientIDEmpty    = errors.New("identity client id is required")
	ErrAcquirerFailure  = errors.New("failed acquiring service token")
	errTokenUnmarshal   = errors.New("failed unmarshaling token endpoint payload")
	errTokenFieldAbsent = errors.New("token endpoint payload carries no access token")
)

const (
	defaultTimeout = 10 * time.Second
	defaultBuffer  = 30 * time.Second
)

// Config describes the internal and external identity providers. The
// external provider is what browser users authenticate against; the
// internal one issues the service tokens used on orchestrator calls.
type Config struct {
	// InternalTokenURL is the node-internal OIDC token endpoint.
	InternalTokenURL string

	// ExternalTokenURL is the externally configured OIDC token
	// endpoint. May equal the internal one.
	ExternalTokenURL string

	ClientID     string
	ClientSecret string

	// Timeout bounds each token request. (Optional) Defaults to 10s.
	Timeout time.Duration

	// Buffer is how long before expiry a cached token is renewed.
	// (Optional) Defaults to 30s.
	Buffer time.Duration

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Provider hands out Authorization header values for internal service
// calls, caching tokens until shortly before expiry.
type Provider struct {
	acquirer acquire.Acquirer
	config   Config
	logger   *zap.Logger
}

// oidcToken is the relevant slice of an RFC 6749 token response.
type oidcToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// New creates a Provider from the given config.
func New(config Config) (*Provider, error) {
	if config.InternalTokenURL == "" {
		return nil, ErrTokenURLEmpty
	}
	if config.ClientID == "" {
		return nil, ErrClientIDEmpty
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Buffer == 0 {
		config.Buffer = defaultBuffer
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", config.ClientID)
	form.Set("client_secret", config.ClientSecret)

	acquirer, err := acquire.NewRemoteBearerTokenAcquirer(acquire.RemoteBearerTokenAcquirerOptions{
		AuthURL: config.InternalTokenURL,
		Timeout: config.Timeout,
		Buffer:  config.Buffer,
		RequestHeaders: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		},
		Body:          []byte(form.Encode()),
		GetToken:      parseAccessToken,
		GetExpiration: parseExpiration,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{acquirer: acquirer, config: config, logger: config.Logger}, nil
}

// ConfigsMatch reports whether the external identity provider is the
// node-internal one. When they differ, end-user tokens from the
// external provider cannot be reused on internal calls and a
// client-credentials exchange is required. In the autostart context the
// internally obtained token is used either way, since there is no
// end-user token to reuse.
func (p *Provider) ConfigsMatch() bool {
	return normalizeIssuer(p.config.InternalTokenURL) == normalizeIssuer(p.config.ExternalTokenURL)
}

// AuthHeader returns a ready-to-use Authorization header value for an
// internal orchestrator call, or an error when the identity provider is
// unreachable or rejected the credentials.
func (p *Provider) AuthHeader() (string, error) {
	header, err := p.acquirer.Acquire()
	if err != nil {
		p.logger.Error("failed to acquire internal service token", zap.Error(err))
		return "", fmt.Errorf("%w: %s", ErrAcquirerFailure, err.Error())
	}
	return header, nil
}

func parseAccessToken(body []byte) (string, error) {
	var token oidcToken
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("%w: %s", errTokenUnmarshal, err.Error())
	}
	if token.AccessToken == "" {
		return "", errTokenFieldAbsent
	}
	return token.AccessToken, nil
}

func parseExpiration(body []byte) (time.Time, error) {
	var token oidcToken
	if err := json.Unmarshal(body, &token); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", errTokenUnmarshal, err.Error())
	}
	return time.Now().Add(time.Duration(token.ExpiresIn) * time.Second), nil
}

func normalizeIssuer(issuer string) string {
	return strings.TrimSuffix(strings.TrimSpace(issuer), "/")
}
