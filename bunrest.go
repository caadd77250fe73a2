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

// Package bunrest publishes registered bun models as a browsable REST API.
package bunrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tomoncle/bunrest/api"
	"github.com/tomoncle/bunrest/config"
	"github.com/tomoncle/bunrest/database"
	"github.com/uptrace/bun"
)

// Server ties a connected database, its model registry and the API built
// over them.
type Server struct {
	Settings *config.Settings
	Registry database.ModelRegistry
	DB       *bun.DB
	Api      *api.Api

	factory  *database.BaseDatabaseFactory
	gatherer prometheus.Gatherer
}

// New connects the configured database, creates the tables of registry
// when migrations on startup are enabled and builds the API. hooks may be
// nil when settings refer to built-in hooks only.
func New(ctx context.Context, settings *config.Settings, registry database.ModelRegistry, hooks *api.Hooks) (*Server, error) {
	if hooks == nil {
		hooks = api.NewHooks()
	}
	factory := database.NewDatabaseFactory()
	factory.SetRegistry(registry)
	if _, err := factory.CreateFromConfig(&settings.Database.ConnectionConfig); err != nil {
		return nil, err
	}
	if err := factory.InitializeDatabase(ctx, settings.Database.DataMigrateConfig.EnableMigrateOnStartup); err != nil {
		return nil, err
	}
	db := factory.GetDB()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metrics, err := api.NewMetrics(reg)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	a, err := api.New(db, registry, settings, api.WithHooks(hooks), api.WithMetrics(metrics))
	if err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to build api: %w", err)
	}
	return &Server{
		Settings: settings,
		Registry: registry,
		DB:       db,
		Api:      a,
		factory:  factory,
		gatherer: reg,
	}, nil
}

// Handler serves the API next to /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP, middleware.Recoverer)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", s.healthz)
	router.Mount("/", s.Api.Handler())
	return router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	status := s.factory.GetHealthStatus(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"health": status,
		"stats":  s.factory.GetStats(),
	})
}

// Close disconnects the database.
func (s *Server) Close() error {
	return s.factory.Close()
}
