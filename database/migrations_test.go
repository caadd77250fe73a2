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

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrest/database"
	"github.com/tomoncle/bunrest/database/dbtest"
	"github.com/uptrace/bun"
)

type note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Text          string `bun:"text,notnull"`
}

func registerNote(registry database.ModelRegistry) error {
	_, err := registry.Register("notes", (*note)(nil))
	return err
}

func TestRunMigrationsCreatesTables(t *testing.T) {
	db, registry := dbtest.Open(t, registerNote)
	ctx := context.Background()

	_, err := db.NewInsert().Model(&note{Text: "hello"}).Exec(ctx)
	require.NoError(t, err)
	count, err := db.NewSelect().Model((*note)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	manager := database.NewMigrationManager(db, registry, nil)
	require.NoError(t, manager.RunMigrations(ctx), "migrations are idempotent")

	applied, err := manager.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "create_table:notes", applied[0].Version)
}

func TestIsSqlErrorOnSqlite(t *testing.T) {
	db, _ := dbtest.Open(t, registerNote)
	ctx := context.Background()

	_, err := db.NewInsert().Model(&note{ID: 1, Text: "a"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&note{ID: 1, Text: "b"}).Exec(ctx)
	require.Error(t, err)

	is, kind := database.IsSqlError(err)
	assert.True(t, is)
	assert.Equal(t, database.DuplicateKeyErr, kind)
}

type member struct {
	bun.BaseModel `bun:"table:members,alias:m"`
	ID            int64   `bun:"id,pk,autoincrement"`
	Teams         []*team `bun:"m2m:memberships,join:Member=Team"`
}

type team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`
	ID            int64 `bun:"id,pk,autoincrement"`
}

type membership struct {
	bun.BaseModel `bun:"table:memberships,alias:ms"`
	MemberID      int64   `bun:"member_id,pk"`
	Member        *member `bun:"rel:belongs-to,join:member_id=id"`
	TeamID        int64   `bun:"team_id,pk"`
	Team          *team   `bun:"rel:belongs-to,join:team_id=id"`
}

func TestConnectRegistersJoinModelsFirst(t *testing.T) {
	db, registry := dbtest.Open(t, func(registry database.ModelRegistry) error {
		if _, err := registry.Register("teams", (*member)(nil), database.WithPriority(10)); err != nil {
			return err
		}
		if _, err := registry.Register("teams", (*team)(nil), database.WithPriority(10)); err != nil {
			return err
		}
		_, err := registry.Register("teams", (*membership)(nil), database.WithPriority(30), database.AsThrough())
		return err
	})
	ctx := context.Background()

	instances := database.RegisteredModelInstances(registry.All())
	require.Len(t, instances, 3)
	assert.IsType(t, (*membership)(nil), instances[0])

	_, err := db.NewInsert().Model(&member{ID: 1}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&team{ID: 7}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&membership{MemberID: 1, TeamID: 7}).Exec(ctx)
	require.NoError(t, err)

	loaded := new(member)
	require.NoError(t, db.NewSelect().Model(loaded).Relation("Teams").Where("m.id = ?", 1).Scan(ctx))
	require.Len(t, loaded.Teams, 1)
	assert.Equal(t, int64(7), loaded.Teams[0].ID)
}
