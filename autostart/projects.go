// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"strings"

	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// ProjectResolver derives the set of projects that currently have a
// valid data route configured in the gateway-admin plane.
type ProjectResolver struct {
	gateway GatewayAdmin
	logger  *zap.Logger
}

func NewProjectResolver(gateway GatewayAdmin, logger *zap.Logger) *ProjectResolver {
	if logger == nil {
		logger = sallust.Default()
	}
	return &ProjectResolver{gateway: gateway, logger: logger}
}

// ValidProjects lists the provisioned routes and recovers each route's
// project id from its name. Route names follow
// "{project_id}-{datastore_type}"; only the final segment is the type
// tag, so only the final segment is stripped. Project ids may contain
// hyphens themselves.
//
// The gateway-admin plane is a soft dependency here: any failure yields
// the empty set (no data-requiring item starts this cycle) instead of
// an error.
func (r *ProjectResolver) ValidProjects(ctx context.Context) map[string]struct{} {
	valid := map[string]struct{}{}

	routes, err := r.gateway.ListRoutes(ctx)
	if err != nil {
		r.logger.Warn("failed to list gateway routes, no projects valid this cycle", zap.Error(err))
		return valid
	}

	for _, route := range routes {
		segments := strings.Split(route.Name, "-")
		if len(segments) < 2 {
			r.logger.Debug("skipping route without a datastore type suffix", zap.String("route", route.Name))
			continue
		}
		valid[strings.Join(segments[:len(segments)-1], "-")] = struct{}{}
	}
	return valid
}
