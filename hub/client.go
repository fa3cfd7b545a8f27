// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package hub implements the client for the central coordination hub,
// which tracks nodes, analyses and registry projects for the
// federation.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fedanalytics/hubgate/model"
	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// Errors that can be returned by this package. Since some of these
// errors are returned wrapped, it is safest to use errors.Is() to check
// for them.
var (
	ErrAddressEmpty = errors.New("hub address is required")

	// ErrHubUnavailable covers the connect class of failures: the hub
	// could not be reached at all, or answered with a server error.
	// Callers key cycle-abort and retry decisions off this error.
	ErrHubUnavailable = errors.New("hub service is unavailable")

	// ErrNotFound is a structured 404 from the hub, distinct from the
	// hub being unreachable.
	ErrNotFound = errors.New("resource not found on hub")

	ErrAuthAcquirerFailure = errors.New("failed acquiring auth token")
)

var (
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
)

const (
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"
)

// StatusError is a non-404 application error from the hub, carrying the
// upstream status code.
type StatusError struct {
	Code    int
	Message string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("hub responded with status %d: %s", e.Code, e.Message)
}

func (e StatusError) StatusCode() int {
	return e.Code
}

// ClientConfig contains config data for the client that will be used to
// make requests to the hub.
type ClientConfig struct {
	// Address is the hub base URL (i.e. https://hub.example.org).
	Address string

	// HTTPClient refers to the client that will be used to send
	// requests. (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Auth provides the mechanism to add auth headers to outgoing
	// requests. (Optional) If not provided, no auth headers are added.
	Auth Auth

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Auth contains authorization data for requests to the hub.
type Auth struct {
	JWT   acquire.RemoteBearerTokenAcquirerOptions
	Basic string
}

// Client is the client used to make requests to the hub.
type Client struct {
	client  *http.Client
	auth    acquire.Acquirer
	baseURL string
	logger  *zap.Logger
}

type response struct {
	Body []byte
	Code int
}

// New creates a hub Client from the given config.
func New(config ClientConfig) (*Client, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	tokenAcquirer, err := buildTokenAcquirer(config.Auth)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:  config.HTTPClient,
		auth:    tokenAcquirer,
		baseURL: config.Address,
		logger:  config.Logger,
	}, nil
}

// FindNodes fetches the nodes whose robot identity matches the given
// robot id. Zero or multiple results are returned as-is; the caller
// decides what an ambiguous answer means.
func (c *Client) FindNodes(ctx context.Context, robotID string) ([]model.NodeDescriptor, error) {
	q := url.Values{}
	q.Set("filter[robot_id]", robotID)

	resp, err := c.sendRequest(ctx, http.MethodGet, fmt.Sprintf("%s/nodes?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if err := c.translateStatus(resp, "FindNodes"); err != nil {
		return nil, err
	}

	var nodes []model.NodeDescriptor
	if err := json.Unmarshal(resp.Body, &nodes); err != nil {
		return nil, fmt.Errorf("FindNodes: %w: %s", errJSONUnmarshal, err.Error())
	}
	return nodes, nil
}

// GetNode fetches a single node record by its hub id.
func (c *Client) GetNode(ctx context.Context, nodeID string) (model.NodeDescriptor, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, fmt.Sprintf("%s/nodes/%s", c.baseURL, url.PathEscape(nodeID)), nil)
	if err != nil {
		return model.NodeDescriptor{}, err
	}
	if err := c.translateStatus(resp, "GetNode"); err != nil {
		return model.NodeDescriptor{}, err
	}

	var node model.NodeDescriptor
	if err := json.Unmarshal(resp.Body, &node); err != nil {
		return model.NodeDescriptor{}, fmt.Errorf("GetNode: %w: %s", errJSONUnmarshal, err.Error())
	}
	return node, nil
}

// ListAnalysisNodes fetches the analysis-node records assigned to the
// given node, most recently updated first, with nested analysis and
// registry detail included.
func (c *Client) ListAnalysisNodes(ctx context.Context, nodeID string) ([]model.WorkItem, error) {
	q := url.Values{}
	q.Set("filter[node_id]", nodeID)
	q.Set("sort", "-updated_at")
	q.Set("include", "analysis,node")

	resp, err := c.sendRequest(ctx, http.MethodGet, fmt.Sprintf("%s/analysis-nodes?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if err := c.translateStatus(resp, "ListAnalysisNodes"); err != nil {
		return nil, err
	}

	var items []model.WorkItem
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, fmt.Errorf("ListAnalysisNodes: %w: %s", errJSONUnmarshal, err.Error())
	}
	return items, nil
}

// RegistryProject fetches the container-registry metadata the hub keeps
// for a project.
func (c *Client) RegistryProject(ctx context.Context, id string) (model.RegistryProject, error) {
	q := url.Values{}
	q.Set("fields", "+account_id,+account_secret")

	resp, err := c.sendRequest(ctx, http.MethodGet, fmt.Sprintf("%s/registry-projects/%s?%s", c.baseURL, url.PathEscape(id), q.Encode()), nil)
	if err != nil {
		return model.RegistryProject{}, err
	}
	if err := c.translateStatus(resp, "RegistryProject"); err != nil {
		return model.RegistryProject{}, err
	}

	var rp model.RegistryProject
	if err := json.Unmarshal(resp.Body, &rp); err != nil {
		return model.RegistryProject{}, fmt.Errorf("RegistryProject: %w: %s", errJSONUnmarshal, err.Error())
	}
	return rp, nil
}

func (c *Client) sendRequest(ctx context.Context, method, url string, body io.Reader) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	if err := acquire.AddAuth(r, c.auth); err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrHubUnavailable, err.Error())
	}
	defer resp.Body.Close()

	out := response{Code: resp.StatusCode}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	out.Body = bodyBytes
	return out, nil
}

// translateStatus maps non-2xx hub answers to the package error
// taxonomy: 5xx counts as unavailable, 404 is a structured not-found,
// anything else keeps the upstream code.
func (c *Client) translateStatus(resp response, operation string) error {
	if resp.Code >= http.StatusOK && resp.Code < http.StatusMultipleChoices {
		return nil
	}

	c.logger.Error("hub responded with a non-success status code",
		zap.String("operation", operation), zap.Int("code", resp.Code))

	switch {
	case resp.Code >= http.StatusInternalServerError:
		return fmt.Errorf(errStatusCodeFmt, ErrHubUnavailable, resp.Code)
	case resp.Code == http.StatusNotFound:
		return fmt.Errorf(errStatusCodeFmt, ErrNotFound, resp.Code)
	default:
		return StatusError{Code: resp.Code, Message: string(resp.Body)}
	}
}

func buildTokenAcquirer(auth Auth) (acquire.Acquirer, error) {
	if !isEmpty(auth.JWT) {
		return acquire.NewRemoteBearerTokenAcquirer(auth.JWT)
	} else if len(auth.Basic) > 0 {
		return acquire.NewFixedAuthAcquirer(auth.Basic)
	}
	return &acquire.DefaultAcquirer{}, nil
}

func isEmpty(options acquire.RemoteBearerTokenAcquirerOptions) bool {
	return len(options.AuthURL) < 1 || options.Buffer == 0 || options.Timeout == 0
}

func validateConfig(config *ClientConfig) error {
	if config.Address == "" {
		return ErrAddressEmpty
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}
