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
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		kind SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"no rows", fmt.Errorf("select: %w", sql.ErrNoRows), true, NoRowsErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{"mysql unknown", &mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{"postgres not null", &pq.Error{Code: "23502"}, true, NotNullViolationErr},
		{"postgres fk", fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}), true, ForeignKeyViolationErr},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: tag.name (2067)"), true, DuplicateKeyErr},
		{"sqlite not null", errors.New("NOT NULL constraint failed: book.title"), true, NotNullViolationErr},
		{"sqlite missing table", errors.New("SQL logic error: no such table: book (1)"), true, NoTableErr},
		{"other", errors.New("connection refused"), false, UnknownErr},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is, kind := IsSqlError(c.err)
			assert.Equal(t, c.is, is)
			assert.Equal(t, c.kind, kind)
		})
	}
}

func TestSQLErrorIsConstraintViolation(t *testing.T) {
	assert.True(t, DuplicateKeyErr.IsConstraintViolation())
	assert.True(t, NotNullViolationErr.IsConstraintViolation())
	assert.False(t, NoTableErr.IsConstraintViolation())
	assert.False(t, NoRowsErr.IsConstraintViolation())
	assert.Equal(t, "duplicate key", DuplicateKeyErr.String())
}
