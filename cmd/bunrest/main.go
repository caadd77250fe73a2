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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomoncle/bunrest"
	"github.com/tomoncle/bunrest/api"
	"github.com/tomoncle/bunrest/config"
	"github.com/tomoncle/bunrest/database"
	"github.com/tomoncle/bunrest/example/someapp"
	"github.com/tomoncle/bunrest/example/someapp/hooks"
	"github.com/tomoncle/bunrest/utils"
)

func main() {
	configPath := flag.String("config", "", "settings file (default $BUNREST_CONFIG or configs/bunrest.yaml)")
	seed := flag.Bool("seed", false, "insert the example data on startup")
	flag.Parse()

	logger := utils.GetLogger("MAIN")
	settings, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load settings: %v", err)
	}
	utils.ConfigureLogLevel(settings.LogLevel)
	utils.ConfigureConsoleLogFormat(settings.LogFormat)
	if settings.LogDir != "" {
		utils.ConfigureFileLog(settings.LogDir, 7)
		utils.ConfigureFileLogFormat(settings.LogFormat)
	}

	registry := database.DefaultRegistry()
	if err := someapp.Register(registry); err != nil {
		logger.Fatalf("failed to register models: %v", err)
	}
	h := api.NewHooks()
	hooks.Register(h)

	ctx := context.Background()
	server, err := bunrest.New(ctx, settings, registry, h)
	if err != nil {
		logger.Fatalf("failed to start: %v", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Errorf("failed to close database: %v", err)
		}
	}()
	if *seed {
		if err := someapp.Seed(ctx, server.DB); err != nil {
			logger.Fatalf("failed to seed example data: %v", err)
		}
		logger.Info("example data inserted")
	}

	httpServer := &http.Server{
		Addr:              settings.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		logger.Infof("listening on %s, api at %s", settings.Listen, server.Api.URL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("could not listen on %s: %v", settings.Listen, err)
		}
	}()

	<-stop
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown failed: %v", err)
	}
}
