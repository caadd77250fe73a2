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

package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomoncle/bunrest/database"
	"github.com/tomoncle/bunrest/filter"
	"github.com/tomoncle/bunrest/repository"
)

// ErrorKind classifies API errors and decides the HTTP status.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NotFound"
	KindUnauthorized     ErrorKind = "Unauthorized"
	KindUnauthenticated  ErrorKind = "Unauthenticated"
	KindBadRequest       ErrorKind = "BadRequest"
	KindInvalidFilter    ErrorKind = "InvalidFilterError"
	KindInvalidSort      ErrorKind = "InvalidSortError"
	KindMethodNotAllowed ErrorKind = "MethodNotAllowed"
	KindConfig           ErrorKind = "ConfigurationError"
	KindInternal         ErrorKind = "InternalError"
)

var statusByKind = map[ErrorKind]int{
	KindNotFound:         http.StatusNotFound,
	KindUnauthorized:     http.StatusForbidden,
	KindUnauthenticated:  http.StatusUnauthorized,
	KindBadRequest:       http.StatusBadRequest,
	KindInvalidFilter:    http.StatusBadRequest,
	KindInvalidSort:      http.StatusBadRequest,
	KindMethodNotAllowed: http.StatusMethodNotAllowed,
	KindConfig:           http.StatusInternalServerError,
	KindInternal:         http.StatusInternalServerError,
}

// Error is an error with an HTTP meaning.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code of the error.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return newError(KindUnauthenticated, format, args...)
}

func BadRequest(format string, args ...interface{}) *Error {
	return newError(KindBadRequest, format, args...)
}

// MethodNotAllowed reports a refused HTTP method; allowed ends up in the
// Allow header.
func MethodNotAllowed(method string, allowed ...string) *Error {
	return &Error{
		Kind:    KindMethodNotAllowed,
		Message: "Forbidden method: " + strings.ToLower(method),
		Err:     allowError(allowed),
	}
}

func configError(format string, args ...interface{}) *Error {
	return newError(KindConfig, format, args...)
}

// AsError maps any error to an *Error. Missing rows become NotFound, data
// constraint violations and relation misuse become BadRequest, filter
// errors keep their message, everything else is an internal error.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var filterErr *filter.Error
	if errors.As(err, &filterErr) {
		return &Error{Kind: KindInvalidFilter, Message: filterErr.Message, Err: err}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
	}
	if errors.Is(err, repository.ErrNotNullable) || errors.Is(err, repository.ErrUnsupported) {
		return &Error{Kind: KindBadRequest, Message: err.Error(), Err: err}
	}
	if is, kind := database.IsSqlError(err); is && kind.IsConstraintViolation() {
		return &Error{Kind: KindBadRequest, Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}
