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
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type registryUser struct {
	bun.BaseModel `bun:"table:users"`
	ID            int64 `bun:"id,pk,autoincrement"`
}

type registryGroup struct {
	bun.BaseModel `bun:"table:groups"`
	ID            int64 `bun:"id,pk,autoincrement"`
}

type registryMembership struct {
	bun.BaseModel `bun:"table:memberships"`
	UserID        int64 `bun:"user_id,pk"`
	GroupID       int64 `bun:"group_id,pk"`
}

func TestModelRegistryRegister(t *testing.T) {
	registry := NewModelRegistry()

	reg, err := registry.Register("auth", (*registryUser)(nil), WithPriority(2))
	require.NoError(t, err)
	assert.Equal(t, "registryuser", reg.Name)
	assert.Equal(t, "registryuser", reg.VerboseName)
	assert.Equal(t, "registryusers", reg.VerboseNamePlural)
	assert.Equal(t, "auth.registryuser", reg.String())
	assert.Equal(t, reflect.TypeOf(registryUser{}), reg.Type())

	_, err = registry.Register("auth", (*registryGroup)(nil),
		WithName("group"), WithPriority(1), WithVerboseName("group", "groups"))
	require.NoError(t, err)
	_, err = registry.Register("auth", (*registryMembership)(nil), WithName("membership"), AsThrough())
	require.NoError(t, err)

	models := registry.Models("auth")
	require.Len(t, models, 2)
	assert.Equal(t, "group", models[0].Name)
	assert.Equal(t, "registryuser", models[1].Name)

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0].Priority())
	assert.Equal(t, []string{"auth"}, registry.Apps())

	found, ok := registry.Lookup(reflect.TypeOf([]*registryGroup{}))
	require.True(t, ok)
	assert.Equal(t, "group", found.Name)

	app, ok := registry.App("auth")
	require.True(t, ok)
	assert.Equal(t, "auth", app.VerboseName)
}

func TestModelRegistryRejectsInvalidModels(t *testing.T) {
	registry := NewModelRegistry()

	_, err := registry.Register("", (*registryUser)(nil))
	assert.Error(t, err)
	_, err = registry.Register("auth", registryUser{})
	assert.Error(t, err)

	_, err = registry.Register("auth", (*registryUser)(nil))
	require.NoError(t, err)
	_, err = registry.Register("other", (*registryUser)(nil))
	assert.Error(t, err, "a type may only be registered once")
	_, err = registry.Register("auth", (*registryGroup)(nil), WithName("registryuser"))
	assert.Error(t, err, "names are unique per application")
}

func TestRegisterApp(t *testing.T) {
	registry := NewModelRegistry()
	registry.RegisterApp(AppConfig{Label: "shop", Description: "Orders"})

	app, ok := registry.App("shop")
	require.True(t, ok)
	assert.Equal(t, "shop", app.VerboseName)
	assert.Equal(t, "Orders", app.Description)
	assert.Empty(t, registry.Apps(), "applications without models are not listed")
}
