// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bytes"
	"encoding/base64"

	"emperror.dev/emperror"
	"github.com/justinas/alice"
	"github.com/xmidt-org/bascule"
	"github.com/xmidt-org/bascule/basculehttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultKeyID = "current"

// ChainIn are the dependencies for building the primary auth chain.
type ChainIn struct {
	fx.In

	Config   Config
	Logger   *zap.Logger
	Measures basculehttp.AuthValidationMeasures
}

// ChainOut carries the assembled chain under the name the primary
// server expects.
type ChainOut struct {
	fx.Out

	Chain alice.Chain `name:"auth_chain"`
}

// ProvideAuthChain configures the authorization requirements requests
// must meet to reach the primary handlers.
func ProvideAuthChain(in ChainIn) (ChainOut, error) {
	listener := basculehttp.NewMetricListener(&in.Measures)

	options := []basculehttp.COption{
		basculehttp.WithCLogger(getLogger),
		basculehttp.WithCErrorResponseFunc(listener.OnErrorResponse),
	}

	basicAllowed := parseBasicCredentials(in.Config.Header, in.Logger)
	if len(basicAllowed) > 0 {
		options = append(options, basculehttp.WithTokenFactory("Basic", basculehttp.BasicTokenFactory(basicAllowed)))
	}

	if in.Config.JWTValidator.Keys.URI != "" {
		resolver, err := in.Config.JWTValidator.Keys.NewResolver()
		if err != nil {
			return ChainOut{}, emperror.With(err, "failed to create bearer key resolver")
		}
		options = append(options, basculehttp.WithTokenFactory("Bearer", accessLevelBearerTokenFactory{
			DefaultKeyID: defaultKeyID,
			Resolver:     resolver,
			Parser:       bascule.DefaultJWTParser,
			Leeway:       in.Config.JWTValidator.Leeway,
			AccessLevel:  newRoleAccessLevel(in.Config.AccessLevel),
		}))
	}

	authConstructor := basculehttp.NewConstructor(options...)

	authEnforcer := basculehttp.NewEnforcer(
		basculehttp.WithELogger(getLogger),
		basculehttp.WithRules("Basic", bascule.Validators{
			bascule.CreateAllowAllCheck(),
		}),
		basculehttp.WithRules("Bearer", bascule.Validators{
			bascule.CreateNonEmptyPrincipalCheck(),
			bascule.CreateNonEmptyTypeCheck(),
			bascule.CreateValidTypeCheck([]string{"jwt"}),
		}),
		basculehttp.WithEErrorResponseFunc(listener.OnErrorResponse),
	)

	chain := alice.New(
		setLogger(in.Logger),
		authConstructor,
		authEnforcer,
		basculehttp.NewListenerDecorator(listener),
	)
	return ChainOut{Chain: chain}, nil
}

// parseBasicCredentials decodes the configured base64 user:password
// pairs. Malformed entries are logged and skipped rather than failing
// startup.
func parseBasicCredentials(encoded []string, logger *zap.Logger) map[string]string {
	allowed := make(map[string]string)
	for _, a := range encoded {
		decoded, err := base64.StdEncoding.DecodeString(a)
		if err != nil {
			logger.Warn("failed to decode basic auth header entry", zap.String("entry", a), zap.Error(err))
			continue
		}
		if i := bytes.IndexByte(decoded, ':'); i > 0 {
			allowed[string(decoded[:i])] = string(decoded[i+1:])
		}
	}
	return allowed
}
