// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package dynamodb provides the DynamoDB-backed outcome sink. Records
// are partitioned by analysis id with the record id as sort key, and
// expire through the table's TTL attribute.
package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fedanalytics/hubgate/events"
)

const (
	defaultTable = "hubgate_outcomes"

	analysisAttributeKey   = "analysis_id"
	expirationAttributeKey = "expires"
)

var errNilClient = errors.New("dynamodb client cannot be nil")

// Config configures the DynamoDB outcome sink.
type Config struct {
	// Table is the outcome table name. (Optional) Defaults to
	// hubgate_outcomes.
	Table string

	// Endpoint overrides the resolved service endpoint, e.g. for a
	// local instance. (Optional)
	Endpoint string

	Region    string
	AccessKey string
	SecretKey string
}

// client captures the DynamoDB API methods of interest. It also helps
// mocking API calls in tests.
type client interface {
	PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error)
}

type Store struct {
	client   client
	table    string
	measures events.Measures
}

// storableOutcome is the persisted shape: the outcome plus the epoch
// second the table's TTL mechanism expires it at.
type storableOutcome struct {
	events.Outcome
	Expires *int64 `dynamodbav:"expires,omitempty" json:"expires,omitempty"`
}

// New creates a DynamoDB-backed sink from the given config.
func New(config Config, measures events.Measures) (*Store, error) {
	if config.Table == "" {
		config.Table = defaultTable
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	svc := awsdynamodb.NewFromConfig(cfg, func(o *awsdynamodb.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})

	return NewWithClient(svc, config.Table, measures)
}

// NewWithClient creates a sink over an existing DynamoDB client.
func NewWithClient(c client, table string, measures events.Measures) (*Store, error) {
	if c == nil {
		return nil, errNilClient
	}
	return &Store{client: c, table: table, measures: measures}, nil
}

func (s *Store) Record(ctx context.Context, outcome events.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}

	storing := storableOutcome{Outcome: outcome}
	if outcome.TTL > 0 {
		expires := time.Now().Unix() + outcome.TTL
		storing.Expires = &expires
	}

	av, err := attributevalue.MarshalMap(storing)
	if err != nil {
		s.measures.QueryFailureCount.With(prometheus.Labels{events.TypeLabel: events.InsertType}).Add(1)
		return err
	}

	_, err = s.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(s.table),
	})
	if err != nil {
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

	out, err := s.client.Query(ctx, &awsdynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#a = :analysis"),
		ExpressionAttributeNames: map[string]string{
			"#a": analysisAttributeKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":analysis": &types.AttributeValueMemberS{Value: analysisID},
		},
	})
	if err != nil {
		s.measures.QueryFailureCount.With(prometheus.Labels{events.TypeLabel: events.ReadType}).Add(1)
		return nil, err
	}
	s.measures.QuerySuccessCount.With(prometheus.Labels{events.TypeLabel: events.ReadType}).Add(1)

	if len(out.Items) == 0 {
		return nil, events.ErrNotFound
	}

	var stored []storableOutcome
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &stored); err != nil {
		return nil, err
	}

	outcomes := make([]events.Outcome, 0, len(stored))
	now := time.Now().Unix()
	for _, record := range stored {
		// DynamoDB expires TTL'd items lazily; filter what is past due
		if record.Expires != nil && *record.Expires <= now {
			continue
		}
		outcomes = append(outcomes, record.Outcome)
	}
	if len(outcomes) == 0 {
		return nil, events.ErrNotFound
	}
	return outcomes, nil
}
