// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package db wires the configured outcome sink backend into the
// application container.
package db

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/events"
	"github.com/fedanalytics/hubgate/events/cassandra"
	"github.com/fedanalytics/hubgate/events/dynamodb"
	"github.com/fedanalytics/hubgate/events/inmem"
)

// Configs selects the sink backend. At most one should be set; when
// none is, the in-memory sink is used.
type Configs struct {
	Dynamo    *dynamodb.Config
	Cassandra *cassandra.Config
}

type SetupIn struct {
	fx.In
	Configs  Configs
	Measures events.Measures
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

// Provide makes the configured events.Sink available to the container.
func Provide() fx.Option {
	return fx.Options(
		fx.Provide(
			SetupSink,
		),
	)
}

// SetupSink picks the sink implementation from config.
func SetupSink(in SetupIn) (events.Sink, error) {
	if in.Configs.Dynamo != nil {
		in.Logger.Info("using dynamodb outcome sink")
		return dynamodb.New(*in.Configs.Dynamo, in.Measures)
	}
	if in.Configs.Cassandra != nil {
		in.Logger.Info("using cassandra outcome sink")
		sink, err := cassandra.New(*in.Configs.Cassandra, in.Measures, in.Logger)
		if err != nil {
			return nil, err
		}
		in.LC.Append(fx.Hook{
			OnStop: func(context.Context) error {
				sink.Close()
				return nil
			},
		})
		return sink, nil
	}
	in.Logger.Info("using in memory outcome sink")
	return inmem.New(), nil
}
