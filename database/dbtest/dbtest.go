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

// Package dbtest opens throwaway in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrest/database"
	"github.com/uptrace/bun"
)

// Open connects a fresh in-memory database, lets register add models to a
// new registry and creates their tables. The database is closed with t.
func Open(t testing.TB, register func(database.ModelRegistry) error) (*bun.DB, database.ModelRegistry) {
	t.Helper()

	registry := database.NewModelRegistry()
	if register != nil {
		require.NoError(t, register(registry))
	}

	manager := database.NewDatabaseManager(&database.ConnectionConfig{
		Type:                "sqlite",
		DBName:              ":memory:",
		ConnectTimeout:      5 * time.Second,
		HealthCheckInterval: 0,
	})
	manager.SetRegistry(registry)
	manager.SetLogger(database.GetLogger())

	ctx := context.Background()
	require.NoError(t, manager.Connect(ctx))
	t.Cleanup(func() { _ = manager.Disconnect() })
	require.NoError(t, manager.RunMigrations(ctx))

	return manager.GetDB(), registry
}
