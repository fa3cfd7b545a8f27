// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package gwadmin implements the client for the gateway-admin service,
// the reverse-proxy administration plane where per-project data routes
// and per-analysis access credentials live.
package gwadmin

import (
	"bytes"
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
	ErrAddressEmpty = errors.New("gateway-admin address is required")

	// ErrConflict is returned for duplicate-name creation: the object
	// already exists. Callers treat this as a repair-or-skip signal,
	// not a hard failure.
	ErrConflict = errors.New("object already exists in gateway-admin")

	// ErrUnavailable covers the connect class of failures: the
	// gateway-admin service is unreachable or answered with a server
	// error.
	ErrUnavailable = errors.New("gateway-admin service is unavailable")

	ErrAuthAcquirerFailure = errors.New("failed acquiring auth token")
)

var (
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling JSON request payload")
)

const (
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"
)

// APIError is any other application error from the gateway-admin
// service, carrying the upstream status code.
type APIError struct {
	Code    int
	Message string
}

func (e APIError) Error() string {
	return fmt.Sprintf("gateway-admin responded with status %d: %s", e.Code, e.Message)
}

func (e APIError) StatusCode() int {
	return e.Code
}

// ClientConfig contains config data for the client that will be used to
// make requests to the gateway-admin service.
type ClientConfig struct {
	// Address is the gateway-admin base URL.
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

// Auth contains authorization data for requests to the gateway-admin
// service.
type Auth struct {
	JWT   acquire.RemoteBearerTokenAcquirerOptions
	Basic string
}

// Client is the client used to make requests to the gateway-admin
// service.
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

// collection is the envelope the gateway-admin service wraps list
// responses in.
type collection struct {
	Data json.RawMessage `json:"data"`
}

// New creates a gateway-admin Client from the given config.
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

// ListRoutes lists all currently provisioned routes, unfiltered and
// without per-route detail.
func (c *Client) ListRoutes(ctx context.Context) ([]model.Route, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, fmt.Sprintf("%s/routes", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	if err := c.translateStatus(resp, "ListRoutes"); err != nil {
		return nil, err
	}

	var envelope collection
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("ListRoutes: %w: %s", errJSONUnmarshal, err.Error())
	}
	var routes []model.Route
	if err := json.Unmarshal(envelope.Data, &routes); err != nil {
		return nil, fmt.Errorf("ListRoutes: %w: %s", errJSONUnmarshal, err.Error())
	}
	return routes, nil
}

// CreateProjectRoute provisions the routable path for a project's data
// store, named "{projectID}-{datastoreType}".
func (c *Client) CreateProjectRoute(ctx context.Context, projectID, datastoreType string) (model.Route, error) {
	name := fmt.Sprintf("%s-%s", projectID, datastoreType)
	payload := map[string]interface{}{
		"name":  name,
		"paths": []string{fmt.Sprintf("/%s", name)},
		"tags":  []string{projectID},
	}

	resp, err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/routes", c.baseURL), payload)
	if err != nil {
		return model.Route{}, err
	}
	if err := c.translateStatus(resp, "CreateProjectRoute"); err != nil {
		return model.Route{}, err
	}

	var route model.Route
	if err := json.Unmarshal(resp.Body, &route); err != nil {
		return model.Route{}, fmt.Errorf("CreateProjectRoute: %w: %s", errJSONUnmarshal, err.Error())
	}
	return route, nil
}

// CreateDataConsumer creates the consumer + key-auth + ACL triple that
// registers an analysis with its project's data route. The returned
// Registration carries the key-auth key subsequently handed to the
// compute pod.
//
// Creation is not atomic upstream; the consumer is created first, so a
// duplicate-name conflict on it is the durable "registration attempted"
// signal regardless of how far a previous attempt got.
func (c *Client) CreateDataConsumer(ctx context.Context, analysisID, projectID string) (model.Registration, error) {
	consumerPayload := map[string]interface{}{
		"username": analysisID,
		"tags":     []string{projectID},
	}
	resp, err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/consumers", c.baseURL), consumerPayload)
	if err != nil {
		return model.Registration{}, err
	}
	if err := c.translateStatus(resp, "CreateConsumer"); err != nil {
		return model.Registration{}, err
	}
	var consumer struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(resp.Body, &consumer); err != nil {
		return model.Registration{}, fmt.Errorf("CreateDataConsumer: %w: %s", errJSONUnmarshal, err.Error())
	}

	resp, err = c.sendJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/consumers/%s/key-auth", c.baseURL, url.PathEscape(analysisID)), map[string]interface{}{})
	if err != nil {
		return model.Registration{}, err
	}
	if err := c.translateStatus(resp, "CreateKeyAuth"); err != nil {
		return model.Registration{}, err
	}
	var keyAuth struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(resp.Body, &keyAuth); err != nil {
		return model.Registration{}, fmt.Errorf("CreateDataConsumer: %w: %s", errJSONUnmarshal, err.Error())
	}

	resp, err = c.sendJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/consumers/%s/acls", c.baseURL, url.PathEscape(analysisID)),
		map[string]interface{}{"group": projectID})
	if err != nil {
		return model.Registration{}, err
	}
	if err := c.translateStatus(resp, "CreateACL"); err != nil {
		return model.Registration{}, err
	}

	return model.Registration{
		ConsumerID:   consumer.ID,
		ConsumerName: consumer.Username,
		Key:          keyAuth.Key,
		Group:        projectID,
	}, nil
}

// DeleteConsumer removes an analysis consumer and, through the
// gateway-admin service's cascade, its key-auth credential and ACL
// membership.
func (c *Client) DeleteConsumer(ctx context.Context, analysisID string) error {
	resp, err := c.sendRequest(ctx, http.MethodDelete,
		fmt.Sprintf("%s/consumers/%s", c.baseURL, url.PathEscape(analysisID)), nil)
	if err != nil {
		return err
	}
	return c.translateStatus(resp, "DeleteConsumer")
}

func (c *Client) sendJSON(ctx context.Context, method, url string, payload interface{}) (response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}
	return c.sendRequest(ctx, method, url, bytes.NewReader(data))
}

func (c *Client) sendRequest(ctx context.Context, method, url string, body io.Reader) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if err := acquire.AddAuth(r, c.auth); err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrUnavailable, err.Error())
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

// translateStatus maps non-2xx answers to the package error taxonomy:
// 409 is a conflict, 5xx counts as unavailable, anything else keeps the
// upstream code.
func (c *Client) translateStatus(resp response, operation string) error {
	if resp.Code >= http.StatusOK && resp.Code < http.StatusMultipleChoices {
		return nil
	}

	c.logger.Error("gateway-admin responded with a non-success status code",
		zap.String("operation", operation), zap.Int("code", resp.Code))

	switch {
	case resp.Code == http.StatusConflict:
		return fmt.Errorf(errStatusCodeFmt, ErrConflict, resp.Code)
	case resp.Code >= http.StatusInternalServerError:
		return fmt.Errorf(errStatusCodeFmt, ErrUnavailable, resp.Code)
	default:
		return APIError{Code: resp.Code, Message: string(resp.Body)}
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
