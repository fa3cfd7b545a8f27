// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package auth assembles the inbound authentication chain of the
// primary server: basic credentials for operator tooling and bearer
// JWTs issued by the identity provider for everything else.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/justinas/alice"
	"github.com/xmidt-org/bascule"
	"github.com/xmidt-org/bascule/key"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// JWTValidator provides a convenient way to define the jwt validator
// through config files.
type JWTValidator struct {
	// Keys is used to create the key.Resolver for JWT verification
	// keys.
	Keys key.ResolverFactory `json:"keys"`

	// Leeway is used to set the amount of buffer given to JWT time
	// values, such as nbf.
	Leeway bascule.Leeway
}

// Config holds the inbound auth settings of the primary server.
type Config struct {
	// Header lists base64 encoded user:password pairs allowed through
	// basic auth. Empty disables the basic token factory.
	Header []string

	// JWTValidator configures bearer token verification. An empty key
	// URI disables the bearer token factory.
	JWTValidator JWTValidator

	// AccessLevel controls how the elevated access attribute is derived
	// from bearer token roles. Nil applies the defaults.
	AccessLevel *AccessLevelConfig
}

// getLogger pulls the request logger from the context.
func getLogger(ctx context.Context) *zap.Logger {
	return sallust.Get(ctx)
}

// setLogger decorates each request context with a logger carrying the
// request coordinates. The Authorization value itself never reaches
// the log, only its scheme does.
func setLogger(logger *zap.Logger) alice.Constructor {
	return func(delegate http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				authType := ""
				if str := r.Header.Get("Authorization"); str != "" {
					authType = strings.Split(str, " ")[0]
				}
				requestLogger := logger.With(
					zap.String("requestURL", r.URL.EscapedPath()),
					zap.String("method", r.Method),
					zap.String("authorizationType", authType),
				)
				delegate.ServeHTTP(w, r.WithContext(sallust.With(r.Context(), requestLogger)))
			})
	}
}
