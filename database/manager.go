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
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// driverSpec names the database/sql driver, DSN and Bun dialect for a
// connection config.
type driverSpec func(cfg *ConnectionConfig) (driver, dsn string, dialect schema.Dialect)

var drivers = map[string]driverSpec{
	"mysql":      mysqlDriver,
	"postgres":   postgresDriver,
	"postgresql": postgresDriver,
	"sqlite":     sqliteDriver,
	"sqlite3":    sqliteDriver,
}

func mysqlDriver(cfg *ConnectionConfig) (string, string, schema.Dialect) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
		cfg.ConnectTimeout, cfg.ReadTimeout, cfg.WriteTimeout)
	return "mysql", dsn, mysqldialect.New()
}

func postgresDriver(cfg *ConnectionConfig) (string, string, schema.Dialect) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
		sslMode, int(cfg.ConnectTimeout.Seconds()))
	return "postgres", dsn, pgdialect.New()
}

// sqliteDriver opens <dbname>.db, or the name itself for ":memory:" and
// "file:" names.
func sqliteDriver(cfg *ConnectionConfig) (string, string, schema.Dialect) {
	dsn := cfg.DBName + ".db"
	if inMemory(cfg) || strings.HasPrefix(cfg.DBName, "file:") {
		dsn = cfg.DBName
	}
	return sqliteshim.ShimName, dsn, sqlitedialect.New()
}

// inMemory reports whether cfg names an in-memory sqlite database. Such a
// database lives as long as its connection.
func inMemory(cfg *ConnectionConfig) bool {
	if cfg.Type != "sqlite" && cfg.Type != "sqlite3" {
		return false
	}
	return cfg.DBName == ":memory:" || strings.Contains(cfg.DBName, "mode=memory")
}

type defaultDatabaseManager struct {
	config   *ConnectionConfig
	registry ModelRegistry
	logger   Logger

	mu        sync.RWMutex
	db        *bun.DB
	retries   int
	stopWatch context.CancelFunc
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// A nil config means DefaultConnectionConfig. Models come from the default
// registry unless SetRegistry is called.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultDatabaseManager{
		config:   config,
		registry: DefaultRegistry(),
		logger:   GetLogger(),
	}
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}

func (dm *defaultDatabaseManager) SetRegistry(registry ModelRegistry) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.registry = registry
}

// RunMigrations creates the tables of every registered model.
func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	dm.mu.RLock()
	db, registry, logger := dm.db, dm.registry, dm.logger
	dm.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return NewMigrationManager(db, registry, logger).RunMigrations(ctx)
}

// Connect opens and pings the database, registers the registry's models
// with Bun and starts the health watcher when an interval is configured.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db != nil {
		return nil
	}
	if err := dm.open(ctx); err != nil {
		return err
	}
	if dm.config.HealthCheckInterval > 0 && dm.stopWatch == nil {
		dm.watch()
	}
	dm.logger.Info("Database connected successfully", "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	return nil
}

// open replaces dm.db with a fresh, pinged connection. dm.mu must be held.
func (dm *defaultDatabaseManager) open(ctx context.Context) error {
	spec, ok := drivers[dm.config.Type]
	if !ok {
		return fmt.Errorf("unsupported database type: %s", dm.config.Type)
	}
	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}

	driver, dsn, dialect := spec(dm.config)
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	dm.configurePool(sqlDB)
	db := bun.NewDB(sqlDB, dialect)
	dm.addQueryHooks(db)

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	if dm.registry != nil {
		db.RegisterModel(RegisteredModelInstances(dm.registry.All())...)
	}
	dm.db = db
	dm.retries = 0
	return nil
}

func (dm *defaultDatabaseManager) configurePool(sqlDB *sql.DB) {
	if inMemory(dm.config) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

func (dm *defaultDatabaseManager) addQueryHooks(db *bun.DB) {
	if dm.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	} else {
		db.AddQueryHook(NewQueryHook("BUNREST_SQL_LOG", false))
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(dm.config.SlowQueryTime, dm.logger))
	}
}

// Disconnect stops the health watcher and closes the database.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.stopWatch != nil {
		dm.stopWatch()
		dm.stopWatch = nil
	}
	return dm.close()
}

// close drops dm.db. dm.mu must be held.
func (dm *defaultDatabaseManager) close() error {
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db = nil
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	dm.logger.Info("Database connection closed")
	return nil
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.logger.Info("Attempting to reconnect to the database")
	if err := dm.Disconnect(); err != nil {
		dm.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	if db := dm.GetDB(); db != nil {
		return db.DB
	}
	return nil
}

// HealthCheck pings the database and reports pool usage.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{LastCheckTime: time.Now()}
	db := dm.GetDB()
	if db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := db.PingContext(pingCtx)
	cancel()
	status.ResponseTime = time.Since(status.LastCheckTime)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}

	stats := db.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

// watch checks health every HealthCheckInterval and, when reconnects are
// enabled, reopens an unhealthy database. dm.mu must be held.
func (dm *defaultDatabaseManager) watch() {
	ctx, cancel := context.WithCancel(context.Background())
	dm.stopWatch = cancel
	interval := dm.config.HealthCheckInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			checkCtx, done := context.WithTimeout(ctx, 10*time.Second)
			status := dm.HealthCheck(checkCtx)
			done()
			if !status.Healthy && dm.config.EnableReconnect {
				dm.reopen(ctx)
			}
		}
	}()
}

// reopen reopens the database in place, keeping the watcher running,
// until MaxReconnectTries consecutive attempts failed.
func (dm *defaultDatabaseManager) reopen(ctx context.Context) {
	dm.mu.Lock()
	if dm.retries >= dm.config.MaxReconnectTries {
		dm.mu.Unlock()
		dm.logger.Error("Max reconnect attempts reached, stopping", "tries", dm.config.MaxReconnectTries)
		return
	}
	dm.retries++
	attempt := dm.retries
	dm.mu.Unlock()

	dm.logger.Info("Starting database reconnect", "try", attempt)
	select {
	case <-ctx.Done():
		return
	case <-time.After(dm.config.ReconnectInterval):
	}

	openCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	dm.mu.Lock()
	_ = dm.close()
	err := dm.open(openCtx)
	dm.mu.Unlock()

	if err != nil {
		dm.logger.Error("Reconnect failed", "error", err, "try", attempt)
		return
	}
	dm.logger.Info("Reconnect succeeded")
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	db := dm.GetDB()
	if db == nil {
		return &DBStats{}
	}
	stats := db.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}
