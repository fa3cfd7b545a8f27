// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/model"
)

func TestValidProjects(t *testing.T) {
	type testCase struct {
		Description string
		Routes      []model.Route
		RoutesErr   error
		Expected    map[string]struct{}
	}

	tcs := []testCase{
		{
			Description: "Datastore suffix is stripped",
			Routes: []model.Route{
				{Name: "falcon-project-fhir"},
				{Name: "7a3e9c2b-1d1f-4ab8-9f3e-abc123456789-s3"},
			},
			Expected: map[string]struct{}{
				"falcon-project": {},
				"7a3e9c2b-1d1f-4ab8-9f3e-abc123456789": {},
			},
		},
		{
			Description: "Route without separator yields no project",
			Routes:      []model.Route{{Name: "health"}},
			Expected:    map[string]struct{}{},
		},
		{
			Description: "Duplicate projects collapse",
			Routes: []model.Route{
				{Name: "proj-fhir"},
				{Name: "proj-s3"},
			},
			Expected: map[string]struct{}{"proj": {}},
		},
		{
			Description: "List failure yields empty set",
			RoutesErr:   errors.New("admin api down"),
			Expected:    map[string]struct{}{},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			gateway := new(mockGatewayAdmin)
			gateway.On("ListRoutes", mock.Anything).Return(tc.Routes, tc.RoutesErr)

			r := NewProjectResolver(gateway, zap.NewNop())
			assert.Equal(tc.Expected, r.ValidProjects(context.Background()))
		})
	}
}
