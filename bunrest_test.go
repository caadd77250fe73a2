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

package bunrest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrest"
	"github.com/tomoncle/bunrest/api"
	"github.com/tomoncle/bunrest/config"
	"github.com/tomoncle/bunrest/database"
	"github.com/tomoncle/bunrest/example/someapp"
	"github.com/tomoncle/bunrest/example/someapp/hooks"
)

const settings = `
base_path: /api
database:
  connection:
    type: sqlite
    dbname: ":memory:"
    connect_timeout: 5s
  migrate:
    enable_migrate_on_startup: true
versions:
  v1:
    apps:
      someapp:
        models:
          book:
            methods:
              url: someapp.url
`

func newServer(t *testing.T) *bunrest.Server {
	t.Helper()
	s, err := config.Parse([]byte(settings))
	require.NoError(t, err)
	registry := database.NewModelRegistry()
	require.NoError(t, someapp.Register(registry))
	h := api.NewHooks()
	hooks.Register(h)

	server, err := bunrest.New(context.Background(), s, registry, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	require.NoError(t, someapp.Seed(context.Background(), server.DB))
	return server
}

func TestServer(t *testing.T) {
	handler := newServer(t).Handler()
	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/api/v1/someapp/book/1/url/")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"url": "/api/v1/someapp/book/1/"}`, rec.Body.String())

	rec = get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, true, health["health"].(map[string]interface{})["healthy"])
	assert.Contains(t, health, "stats")

	rec = get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bunrest_requests_total{app="someapp",model="book",operation="method",status="200",version="v1"} 1`)

	assert.Equal(t, http.StatusNotFound, get("/api/v9/").Code)
}

func TestServerRejectsUnknownHooks(t *testing.T) {
	s, err := config.Parse([]byte(`
database:
  connection:
    type: sqlite
    dbname: ":memory:"
    connect_timeout: 5s
  migrate:
    enable_migrate_on_startup: true
versions:
  v1:
    authorization: nobody
`))
	require.NoError(t, err)
	registry := database.NewModelRegistry()
	require.NoError(t, someapp.Register(registry))

	_, err = bunrest.New(context.Background(), s, registry, nil)
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.KindConfig, apiErr.Kind)
}
