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
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tomoncle/bunrest/meta"
	"github.com/uptrace/bun"
)

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Claims  map[string]interface{}
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by authentication, nil for
// anonymous requests.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// Authentication identifies the caller of a request. A nil identity with a
// nil error is an anonymous caller.
type Authentication interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// Authorization decides what the caller may do with a model's objects.
// ReadList may narrow the query instead of refusing it.
type Authorization interface {
	ReadList(ctx context.Context, q *bun.SelectQuery) (*bun.SelectQuery, error)
	ReadDetail(ctx context.Context, obj interface{}) (bool, error)
	CreateDetail(ctx context.Context, obj interface{}) (bool, error)
	UpdateDetail(ctx context.Context, obj interface{}) (bool, error)
	DeleteDetail(ctx context.Context, obj interface{}) (bool, error)
}

type (
	AuthenticationFactory func(model *meta.Model) Authentication
	AuthorizationFactory  func(model *meta.Model) Authorization
)

// Anonymous lets every request through without an identity.
type Anonymous struct{}

func (Anonymous) Authenticate(*http.Request) (*Identity, error) { return nil, nil }

// JWTAuthentication reads an HMAC signed bearer token. Requests without a
// token are anonymous unless Required is set.
type JWTAuthentication struct {
	Secret   []byte
	Required bool
}

func (a *JWTAuthentication) Authenticate(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		if a.Required {
			return nil, Unauthenticated("Missing bearer token")
		}
		return nil, nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: "Invalid bearer token", Err: err}
	}
	subject, _ := claims.GetSubject()
	return &Identity{Subject: subject, Claims: claims}, nil
}

// ReadOnly allows reads and refuses every write.
type ReadOnly struct{}

func (ReadOnly) ReadList(_ context.Context, q *bun.SelectQuery) (*bun.SelectQuery, error) {
	return q, nil
}

func (ReadOnly) ReadDetail(context.Context, interface{}) (bool, error)   { return true, nil }
func (ReadOnly) CreateDetail(context.Context, interface{}) (bool, error) { return false, nil }
func (ReadOnly) UpdateDetail(context.Context, interface{}) (bool, error) { return false, nil }
func (ReadOnly) DeleteDetail(context.Context, interface{}) (bool, error) { return false, nil }

// AllowAll allows everything.
type AllowAll struct{}

func (AllowAll) ReadList(_ context.Context, q *bun.SelectQuery) (*bun.SelectQuery, error) {
	return q, nil
}

func (AllowAll) ReadDetail(context.Context, interface{}) (bool, error)   { return true, nil }
func (AllowAll) CreateDetail(context.Context, interface{}) (bool, error) { return true, nil }
func (AllowAll) UpdateDetail(context.Context, interface{}) (bool, error) { return true, nil }
func (AllowAll) DeleteDetail(context.Context, interface{}) (bool, error) { return true, nil }

// Authenticated allows reads to everyone and writes to identified callers.
type Authenticated struct {
	ReadOnly
}

func (Authenticated) CreateDetail(ctx context.Context, _ interface{}) (bool, error) {
	return IdentityFrom(ctx) != nil, nil
}

func (Authenticated) UpdateDetail(ctx context.Context, _ interface{}) (bool, error) {
	return IdentityFrom(ctx) != nil, nil
}

func (Authenticated) DeleteDetail(ctx context.Context, _ interface{}) (bool, error) {
	return IdentityFrom(ctx) != nil, nil
}
