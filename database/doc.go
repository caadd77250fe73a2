// Package database provides connection management, the model registry that
// drives API generation, table bootstrap, query logging hooks, SQL error
// classification and health checks, built on top of Bun.
package database
