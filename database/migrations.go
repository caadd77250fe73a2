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

package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/uptrace/bun"
)

// MigrationManager creates the tables of registered models and keeps a
// record of what it applied.
type MigrationManager struct {
	db       *bun.DB
	registry ModelRegistry
	logger   Logger
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:bunrest_migrations,alias:mig"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at,nullzero,notnull,default:current_timestamp"`
	Description string    `bun:"description"`
}

// NewMigrationManager constructs a MigrationManager for the given registry.
func NewMigrationManager(db *bun.DB, registry ModelRegistry, logger Logger) *MigrationManager {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &MigrationManager{db: db, registry: registry, logger: logger}
}

// RunMigrations creates the migration table and one table per registered
// model, in priority order. Existing tables are left untouched.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	models := mm.registry.All()
	mm.db.RegisterModel(RegisteredModelInstances(models)...)
	for _, model := range models {
		if err := mm.createTable(ctx, model); err != nil {
			return err
		}
	}

	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!", "models", len(models))
	}
	return nil
}

func (mm *MigrationManager) createTable(ctx context.Context, model SQLModel) error {
	table := mm.db.Dialect().Tables().Get(typeOf(model.Instance()))
	version := "create_table:" + table.Name

	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		applied, err := tx.NewSelect().Model((*Migration)(nil)).Where("version = ?", version).Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", version, err)
		}
		if _, err := tx.NewCreateTable().Model(model.Instance()).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
		if applied {
			return nil
		}
		record := &Migration{
			Version:     version,
			Name:        table.Type.Name(),
			AppliedAt:   time.Now(),
			Description: fmt.Sprintf("create table %s for %T", table.Name, model.Instance()),
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		if mm.logger != nil {
			mm.logger.Debug("Table created", "table", table.Name)
		}
		return nil
	})
}

// GetAppliedMigrations returns every recorded migration ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().Model(&migrations).Order("version ASC").Scan(ctx)
	return migrations, err
}
