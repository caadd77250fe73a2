/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrest/api"
	"github.com/tomoncle/bunrest/config"
	"github.com/tomoncle/bunrest/database/dbtest"
	"github.com/tomoncle/bunrest/example/someapp"
	"github.com/tomoncle/bunrest/example/someapp/hooks"
)

const (
	testSecret = "test-secret"

	librarySettings = `
base_path: /api
jwt_secret: test-secret
versions:
  v1:
    description: First version
    authentication: jwt
    authorization: allow_all
    apps:
      someapp:
        models:
          author:
            dehydrate: someapp.author_display_name
            list_mode: objects
            fields:
              name:
                help_text: The author's name
          book:
            authorization: someapp.drafts
            hydrate: someapp.strip_blank_title
            methods:
              url: someapp.url
            classmethods:
              find_by_title: someapp.find_by_title
            default_limit: 2
            exclude: [extra]
          tag:
            always_return_data: true
  v2:
    exclude: [someapp.profile]
    apps:
      someapp:
        exclude: [tag]
`
)

type client struct {
	t        *testing.T
	handler  http.Handler
	registry *prometheus.Registry
	token    string
}

func newClient(t *testing.T, settings string) *client {
	t.Helper()
	db, registry := dbtest.Open(t, someapp.Register)
	require.NoError(t, someapp.Seed(context.Background(), db))

	s, err := config.Parse([]byte(settings))
	require.NoError(t, err)
	h := api.NewHooks()
	hooks.Register(h)
	reg := prometheus.NewRegistry()
	metrics, err := api.NewMetrics(reg)
	require.NoError(t, err)

	a, err := api.New(db, registry, s, api.WithHooks(h), api.WithMetrics(metrics))
	require.NoError(t, err)
	return &client{t: t, handler: a.Handler(), registry: reg}
}

// authenticated returns a client sending a valid bearer token.
func (c *client) authenticated() *client {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "tester"}).
		SignedString([]byte(testSecret))
	require.NoError(c.t, err)
	cp := *c
	cp.token = token
	return &cp
}

func (c *client) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, nil)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data), rec.Body.String())
	return data
}

func objects(t *testing.T, rec *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["objects"].([]interface{})
}

func ids(values ...float64) []interface{} {
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

func listURL(model string, params url.Values) string {
	return "/api/v1/someapp/" + model + "/?" + params.Encode()
}

func location(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return u
}
