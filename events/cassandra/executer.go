// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gocql/gocql"
	"github.com/hailocab/go-hostpool"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/events"
)

// dbStore is the seam between the sink and the gocql session. The
// executor speaks CQL and raw rows; decoding and metrics stay above it.
type dbStore interface {
	Insert(ctx context.Context, outcome events.Outcome) error
	SelectByAnalysis(ctx context.Context, analysisID string) ([][]byte, error)
	Close()
	Ping() error
}

var errSessionClosed = errors.New("cassandra session is closed")

type cassandraExecutor struct {
	session *gocql.Session
	logger  *zap.Logger
}

func connect(clusterConfig *gocql.ClusterConfig, logger *zap.Logger) (dbStore, error) {
	clusterConfig.PoolConfig.HostSelectionPolicy = gocql.HostPoolHostPolicy(hostpool.New(nil))
	session, err := clusterConfig.CreateSession()
	if err != nil {
		return nil, err
	}

	return &cassandraExecutor{session: session, logger: logger}, nil
}

func (s *cassandraExecutor) Insert(ctx context.Context, outcome events.Outcome) error {
	if s.session.Closed() {
		return errSessionClosed
	}

	data, err := json.Marshal(&outcome)
	if err != nil {
		return err
	}

	return s.session.Query("INSERT INTO outcomes (analysis_id, id, data) VALUES (?,?,?) USING TTL ?",
		outcome.AnalysisID, outcome.ID, data, outcome.TTL).WithContext(ctx).Exec()
}

func (s *cassandraExecutor) SelectByAnalysis(ctx context.Context, analysisID string) ([][]byte, error) {
	if s.session.Closed() {
		return nil, errSessionClosed
	}

	iter := s.session.Query("SELECT data FROM outcomes WHERE analysis_id = ?", analysisID).
		WithContext(ctx).Iter()

	var rows [][]byte
	var data []byte
	for iter.Scan(&data) {
		row := make([]byte, len(data))
		copy(row, data)
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		s.logger.Error("failed to close iter", zap.String("analysisId", analysisID), zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func (s *cassandraExecutor) Close() {
	s.session.Close()
}

func (s *cassandraExecutor) Ping() error {
	if s.session.Closed() {
		return errSessionClosed
	}
	return nil
}
