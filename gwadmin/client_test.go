// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package gwadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	assert := assert.New(t)

	err := validateConfig(&ClientConfig{})
	assert.Equal(ErrAddressEmpty, err)

	config := &ClientConfig{Address: "http://gateway-admin.example.org"}
	assert.NoError(validateConfig(config))
	assert.Equal(http.DefaultClient, config.HTTPClient)
	assert.NotNil(config.Logger)
}

func TestListRoutes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal("/routes", r.URL.Path)
		assert.Equal(http.MethodGet, r.Method)
		rw.Write([]byte(`{"data": [
			{"name": "project-1-fhir", "paths": ["/project-1-fhir"]},
			{"name": "project-2-s3", "paths": ["/project-2-s3"]}
		]}`))
	}))
	defer server.Close()

	client, err := New(ClientConfig{Address: server.URL})
	require.NoError(err)

	routes, err := client.ListRoutes(context.Background())
	require.NoError(err)
	require.Len(routes, 2)
	assert.Equal("project-1-fhir", routes[0].Name)
}

func TestCreateDataConsumer(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		calls = append(calls, fmt.Sprintf("%s %s", r.Method, r.URL.Path))

		var payload map[string]interface{}
		require.NoError(json.NewDecoder(r.Body).Decode(&payload))

		switch r.URL.Path {
		case "/consumers":
			assert.Equal("analysis-1", payload["username"])
			rw.WriteHeader(http.StatusCreated)
			rw.Write([]byte(`{"id": "c-1", "username": "analysis-1"}`))
		case "/consumers/analysis-1/key-auth":
			rw.WriteHeader(http.StatusCreated)
			rw.Write([]byte(`{"key": "issued-key"}`))
		case "/consumers/analysis-1/acls":
			assert.Equal("project-1", payload["group"])
			rw.WriteHeader(http.StatusCreated)
			rw.Write([]byte(`{"group": "project-1"}`))
		default:
			rw.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := New(ClientConfig{Address: server.URL})
	require.NoError(err)

	reg, err := client.CreateDataConsumer(context.Background(), "analysis-1", "project-1")
	require.NoError(err)
	assert.Equal("c-1", reg.ConsumerID)
	assert.Equal("analysis-1", reg.ConsumerName)
	assert.Equal("issued-key", reg.Key)
	assert.Equal("project-1", reg.Group)
	assert.Equal([]string{
		"POST /consumers",
		"POST /consumers/analysis-1/key-auth",
		"POST /consumers/analysis-1/acls",
	}, calls)
}

func TestCreateDataConsumerConflict(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusConflict)
		rw.Write([]byte(`{"message": "UNIQUE violation"}`))
	}))
	defer server.Close()

	client, err := New(ClientConfig{Address: server.URL})
	require.NoError(err)

	_, err = client.CreateDataConsumer(context.Background(), "analysis-1", "project-1")
	assert.ErrorIs(err, ErrConflict)
}

func TestCreateProjectRoute(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal("/routes", r.URL.Path)
		var payload map[string]interface{}
		require.NoError(json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal("project-1-fhir", payload["name"])
		rw.WriteHeader(http.StatusCreated)
		rw.Write([]byte(`{"name": "project-1-fhir", "paths": ["/project-1-fhir"]}`))
	}))
	defer server.Close()

	client, err := New(ClientConfig{Address: server.URL})
	require.NoError(err)

	route, err := client.CreateProjectRoute(context.Background(), "project-1", "fhir")
	require.NoError(err)
	assert.Equal("project-1-fhir", route.Name)
}

func TestDeleteConsumer(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodDelete, r.Method)
		assert.Equal("/consumers/analysis-1", r.URL.Path)
		rw.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := New(ClientConfig{Address: server.URL})
	require.NoError(err)

	assert.NoError(client.DeleteConsumer(context.Background(), "analysis-1"))
}

func TestTranslateStatus(t *testing.T) {
	type testCase struct {
		Description string
		Code        int
		ExpectedErr error
	}

	tcs := []testCase{
		{Description: "Conflict", Code: http.StatusConflict, ExpectedErr: ErrConflict},
		{Description: "Server error is unavailable", Code: http.StatusServiceUnavailable, ExpectedErr: ErrUnavailable},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(tc.Code)
			}))
			defer server.Close()

			client, err := New(ClientConfig{Address: server.URL})
			require.NoError(err)

			err = client.DeleteConsumer(context.Background(), "analysis-1")
			assert.ErrorIs(err, tc.ExpectedErr)
		})
	}

	t.Run("Other codes carry an APIError", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusBadRequest)
			rw.Write([]byte("bad name"))
		}))
		defer server.Close()

		client, err := New(ClientConfig{Address: server.URL})
		require.NoError(err)

		err = client.DeleteConsumer(context.Background(), "analysis-1")
		var apiErr APIError
		require.ErrorAs(err, &apiErr)
		assert.Equal(http.StatusBadRequest, apiErr.StatusCode())
	})
}
