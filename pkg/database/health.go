package database

import (
	"context"
	"database/sql"
	"fmt"
)

// HealthStatus is the shape returned by the /health endpoint's database
// check.
type HealthStatus struct {
	Reachable bool   `json:"reachable"`
	OpenConns int    `json:"open_conns"`
	InUse     int    `json:"in_use"`
	Error     string `json:"error,omitempty"`
}

// Health pings the pool and reports connection-pool stats.
func Health(ctx context.Context, db *sql.DB) (HealthStatus, error) {
	stats := db.Stats()
	status := HealthStatus{
		OpenConns: stats.OpenConnections,
		InUse:     stats.InUse,
	}
	if err := db.PingContext(ctx); err != nil {
		status.Error = err.Error()
		return status, fmt.Errorf("database ping failed: %w", err)
	}
	status.Reachable = true
	return status, nil
}
