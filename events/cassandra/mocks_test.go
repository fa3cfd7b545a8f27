// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fedanalytics/hubgate/events"
)

type mockDB struct {
	mock.Mock
}

func (s *mockDB) Insert(ctx context.Context, outcome events.Outcome) error {
	args := s.Called(ctx, outcome)
	return args.Error(0)
}

func (s *mockDB) SelectByAnalysis(ctx context.Context, analysisID string) ([][]byte, error) {
	args := s.Called(ctx, analysisID)
	if rows := args.Get(0); rows != nil {
		return rows.([][]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (s *mockDB) Close() {
	s.Called()
}

func (s *mockDB) Ping() error {
	args := s.Called()
	return args.Error(0)
}
