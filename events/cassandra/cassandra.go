// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package cassandra provides the Cassandra-backed outcome sink.
package cassandra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/events"
)

const (
	defaultOpTimeout             = 10 * time.Second
	defaultKeyspace              = "hubgate"
	defaultMaxNumberConnsPerHost = 2
)

var errNoHosts = errors.New("at least one cassandra host is required")

// Config configures the Cassandra outcome sink.
type Config struct {
	// Hosts to connect to. Must have at least one.
	Hosts []string

	// Keyspace for the outcome table. (Optional) Defaults to hubgate.
	Keyspace string

	// OpTimeout bounds each query. (Optional) Defaults to 10s.
	OpTimeout time.Duration

	// Username and Password authenticate into the cluster; both must
	// be provided together. (Optional)
	Username string
	Password string

	// MaxConnsPerHost is the max number of connections per host.
	// (Optional) Defaults to 2.
	MaxConnsPerHost int
}

type Store struct {
	client   dbStore
	logger   *zap.Logger
	measures events.Measures
}

// New connects to the cluster and returns a Cassandra-backed sink.
func New(config Config, measures events.Measures, logger *zap.Logger) (*Store, error) {
	if len(config.Hosts) == 0 {
		return nil, errNoHosts
	}
	validateConfig(&config)
	if logger == nil {
		logger = sallust.Default()
	}

	cluster := gocql.NewCluster(config.Hosts...)
	cluster.Keyspace = config.Keyspace
	cluster.Timeout = config.OpTimeout
	cluster.NumConns = config.MaxConnsPerHost
	if config.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}

	client, err := connect(cluster, logger)
	if err != nil {
		return nil, err
	}

	return &Store{client: client, logger: logger, measures: measures}, nil
}

func (s *Store) Record(ctx context.Context, outcome events.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}

	if err := s.client.Insert(ctx, outcome); err != nil {
		s.measures.QueryFailureCount.With(prometheus.Labels{events.TypeLabel: events.InsertType}).Add(1)
		return err
	}
	s.measures.QuerySuccessCount.With(prometheus.Labels{events.TypeLabel: events.InsertType}).Add(1)
	return nil
}

func (s *Store) ByAnalysis(ctx context.Context, analysisID string) ([]events.Outcome, error) {
	if analysisID == "" {
		return nil, events.ErrAnalysisIDEmpty
	}

	rows, err := s.client.SelectByAnalysis(ctx, analysisID)
	if err != nil {
		s.measures.QueryFailureCount.With(prometheus.Labels{events.TypeLabel: events.ReadType}).Add(1)
		return nil, err
	}
	s.measures.QuerySuccessCount.With(prometheus.Labels{events.TypeLabel: events.ReadType}).Add(1)

	var outcomes []events.Outcome
	for _, row := range rows {
		var outcome events.Outcome
		if err := json.Unmarshal(row, &outcome); err != nil {
			s.logger.Error("failed to decode stored outcome",
				zap.String("analysisId", analysisID), zap.Error(err))
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	if len(outcomes) == 0 {
		return nil, events.ErrNotFound
	}
	return outcomes, nil
}

// Ping verifies the session can still reach the cluster.
func (s *Store) Ping() error {
	if err := s.client.Ping(); err != nil {
		s.measures.QueryFailureCount.With(prometheus.Labels{events.TypeLabel: events.PingType}).Add(1)
		return err
	}
	s.measures.QuerySuccessCount.With(prometheus.Labels{events.TypeLabel: events.PingType}).Add(1)
	return nil
}

func (s *Store) Close() {
	s.client.Close()
}

func validateConfig(config *Config) {
	if config.Keyspace == "" {
		config.Keyspace = defaultKeyspace
	}
	if config.OpTimeout == 0 {
		config.OpTimeout = defaultOpTimeout
	}
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = defaultMaxNumberConnsPerHost
	}
}
