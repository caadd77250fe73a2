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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
debug: true
base_path: /api
database:
  connection:
    type: sqlite
    dbname: ":memory:"
    connect_timeout: 3s
versions:
  v2:
    description: Second version
    exclude: [auth, someapp.tag, someapp.book.price]
    authorization: someapp.allow_all
    apps:
      someapp:
        exclude: [profile, author.email]
        models:
          book:
            exclude: [extra]
            list_mode: objects
            default_limit: 5
            max_limit: 50
            methods:
              url: someapp.book_url
            fields:
              status:
                help_text: Publication status
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.True(t, s.Debug)
	assert.Equal(t, "/api", s.BasePath)
	assert.Equal(t, ":8000", s.Listen)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "text", s.LogFormat)
	assert.Equal(t, "sqlite", s.Database.ConnectionConfig.Type)
	assert.Equal(t, 3*time.Second, s.Database.ConnectionConfig.ConnectTimeout)
	assert.Equal(t, 100, s.Database.ConnectionConfig.MaxOpenConns, "unset keys keep their defaults")

	assert.Equal(t, []string{"v2"}, s.VersionNames())
	v2 := s.Versions["v2"]
	assert.Equal(t, "v2", v2.Name)
	assert.Equal(t, "someapp.allow_all", v2.Authorization)
	assert.True(t, v2.ExcludesApp("auth"))
	assert.False(t, v2.ExcludesApp("someapp"))

	app := v2.App("someapp")
	assert.ElementsMatch(t, []string{"profile", "author.email", "tag", "book.price"}, app.Exclude)
	assert.True(t, app.ExcludesModel("tag"))
	assert.True(t, app.ExcludesModel("profile"))
	assert.False(t, app.ExcludesModel("book"))

	book := app.Model("book")
	assert.ElementsMatch(t, []string{"extra", "price"}, book.Exclude)
	assert.True(t, book.ExcludesField("price"))
	assert.Equal(t, ListModeObjects, book.ListMode)
	require.NotNil(t, book.DefaultLimit)
	assert.Equal(t, 5, *book.DefaultLimit)
	assert.Equal(t, "someapp.book_url", book.Methods["url"])
	assert.Equal(t, "Publication status", book.Field("status").HelpText)
	assert.Equal(t, "", book.Field("title").HelpText)

	author := app.Model("author")
	assert.Equal(t, []string{"email"}, author.Exclude)

	assert.Empty(t, v2.App("missing").Exclude)
	assert.Len(t, v2.Apps["someapp"].Exclude, 2, "propagation does not mutate the parsed tree")
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultVersion}, s.VersionNames())
	assert.Equal(t, "v1", s.Versions[DefaultVersion].Name)
	assert.Equal(t, Default().Listen, s.Listen)
}

func TestParseRejectsInvalidSettings(t *testing.T) {
	_, err := Parse([]byte("versions: {v1: {apps: {a: {models: {m: {list_mode: all}}}}}}"))
	assert.ErrorContains(t, err, "list_mode")
	_, err = Parse([]byte("versions: {v1: {apps: {a: {models: {m: {default_limit: -1}}}}}}"))
	assert.ErrorContains(t, err, "default_limit")
	_, err = Parse([]byte("log_format: xml"))
	assert.ErrorContains(t, err, "log_format")
	_, err = Parse([]byte("versions: [1, 2]"))
	assert.Error(t, err)
}

func TestLoadWithEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bunrest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	t.Setenv("BUNREST_LISTEN", "127.0.0.1:9000")
	t.Setenv("BUNREST_DEBUG", "false")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", s.Listen)
	assert.False(t, s.Debug)

	s, err = Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultVersion}, s.VersionNames())
}
