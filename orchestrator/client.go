// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the client for the pod orchestrator,
// the subsystem that actually starts, stops and inspects compute pods
// for an analysis.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/fedanalytics/hubgate/model"
	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// Errors that can be returned by this package. The three categories
// below must stay distinguishable: callers map each one to a different
// outcome.
var (
	ErrAddressEmpty = errors.New("orchestrator address is required")

	// ErrUnavailable is the connect class: the orchestrator could not
	// be reached at all, or the protocol exchange failed before a
	// response arrived.
	ErrUnavailable = errors.New("orchestrator is unavailable")

	// ErrReadTimeout means the orchestrator accepted the request but
	// did not answer in time. This is a known slow path (large image
	// pulls), not necessarily a failure.
	ErrReadTimeout = errors.New("orchestrator read timed out")

	// ErrNotFound is a structured 404: no pod exists for the analysis.
	ErrNotFound = errors.New("no pod found for analysis")
)

var (
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling JSON request payload")
)

const errWrappedFmt = "%w: %s"

// StatusError is a structured application error from the orchestrator
// (e.g. an image pull or backend failure reported with an error body).
type StatusError struct {
	Code    int
	Message string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("orchestrator responded with status %d: %s", e.Code, e.Message)
}

func (e StatusError) StatusCode() int {
	return e.Code
}

// ClientConfig contains config data for the client that will be used to
// make requests to the orchestrator.
type ClientConfig struct {
	// Address is the orchestrator base URL.
	Address string

	// HTTPClient refers to the client that will be used to send
	// requests. Its Timeout bounds every call, including the slow
	// create path. (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Client is the client used to make requests to the orchestrator.
type Client struct {
	client   *http.Client
	baseURL  string
	logger   *zap.Logger
	validate *validator.Validate
}

// StatusMap is the body shape the orchestrator answers with: a map of
// analysis id to per-pod status detail.
type StatusMap map[string]interface{}

// New creates an orchestrator Client from the given config.
func New(config ClientConfig) (*Client, error) {
	if config.Address == "" {
		return nil, ErrAddressEmpty
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}

	return &Client{
		client:   config.HTTPClient,
		baseURL:  config.Address,
		logger:   config.Logger,
		validate: validator.New(),
	}, nil
}

// CreatePod asks the orchestrator to start a pod for the analysis
// described by props. The authorization header value is passed through
// verbatim. On 2xx the decoded body and upstream code are returned with
// a nil error; every failure is one of the package error categories.
func (c *Client) CreatePod(ctx context.Context, props model.StartProperties, authorization string) (StatusMap, int, error) {
	if err := c.validate.Struct(props); err != nil {
		return nil, http.StatusBadRequest, StatusError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	data, err := json.Marshal(props)
	if err != nil {
		return nil, 0, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/po", c.baseURL), bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	r.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return nil, 0, c.translateTransportError("CreatePod", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		out := StatusMap{}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, resp.StatusCode, fmt.Errorf("CreatePod: %w: %s", errJSONUnmarshal, err.Error())
			}
		}
		return out, resp.StatusCode, nil
	}

	c.logger.Error("orchestrator rejected a create-pod request",
		zap.Int("code", resp.StatusCode), zap.String("analysisId", props.AnalysisID))
	return nil, resp.StatusCode, StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
}

// PodStatus fetches the per-analysis status string of a pod.
// ErrNotFound means the orchestrator knows of no pod for the analysis.
func (c *Client) PodStatus(ctx context.Context, analysisID string) (string, error) {
	resp, code, err := c.send(ctx, http.MethodGet, fmt.Sprintf("%s/po/%s/status", c.baseURL, url.PathEscape(analysisID)))
	if err != nil {
		return "", err
	}

	switch {
	case code == http.StatusNotFound:
		return "", ErrNotFound
	case code >= http.StatusMultipleChoices:
		return "", StatusError{Code: code, Message: errorMessage(resp)}
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp, &status); err != nil {
		return "", fmt.Errorf("PodStatus: %w: %s", errJSONUnmarshal, err.Error())
	}
	return status.Status, nil
}

// StopPod asks the orchestrator to stop the pod of an analysis.
func (c *Client) StopPod(ctx context.Context, analysisID string) error {
	return c.podCommand(ctx, "StopPod", fmt.Sprintf("%s/po/%s/stop", c.baseURL, url.PathEscape(analysisID)))
}

// DeletePod removes the pod of an analysis and its remaining resources.
func (c *Client) DeletePod(ctx context.Context, analysisID string) error {
	return c.podCommand(ctx, "DeletePod", fmt.Sprintf("%s/po/%s/delete", c.baseURL, url.PathEscape(analysisID)))
}

func (c *Client) podCommand(ctx context.Context, operation, url string) error {
	body, code, err := c.send(ctx, http.MethodPut, url)
	if err != nil {
		return err
	}
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= http.StatusMultipleChoices:
		c.logger.Error("orchestrator rejected a pod command",
			zap.String("operation", operation), zap.Int("code", code))
		return StatusError{Code: code, Message: errorMessage(body)}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, url string) ([]byte, int, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return nil, 0, c.translateTransportError(method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	return body, resp.StatusCode, nil
}

// translateTransportError separates the slow-but-accepted case from the
// never-reached case. A timeout while waiting for the response counts
// as a read timeout; a timeout during dial means the orchestrator was
// never reached, so it stays in the connect class.
func (c *Client) translateTransportError(operation string, err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		c.logger.Error("orchestrator could not be reached", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf(errWrappedFmt, ErrUnavailable, err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Warn("orchestrator request timed out", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf(errWrappedFmt, ErrReadTimeout, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("orchestrator request timed out", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf(errWrappedFmt, ErrReadTimeout, err.Error())
	}
	c.logger.Error("orchestrator request failed", zap.String("operation", operation), zap.Error(err))
	return fmt.Errorf(errWrappedFmt, ErrUnavailable, err.Error())
}

func errorMessage(body []byte) string {
	var detail struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil {
		if detail.Message != "" {
			return detail.Message
		}
		if detail.Detail != "" {
			return detail.Detail
		}
	}
	return string(body)
}
