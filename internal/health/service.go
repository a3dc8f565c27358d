// Package health reports liveness of the service and its dependencies.
package health

import (
	"context"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
)

var startedAt = time.Now()

// DBPinger is optional for health check. If nil, the database is reported as
// disconnected.
type DBPinger interface {
	Ping() error
}

// DepStatus is one dependency's line in the health report.
type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

// Result is the full health report.
type Result struct {
	Status        string               `json:"status"`
	UptimeSeconds int64                `json:"uptimeSeconds"`
	GoVersion     string               `json:"goVersion"`
	Dependencies  map[string]DepStatus `json:"dependencies"`
}

// Collect pings the database and Redis and assembles the report. Overall
// status is "ok" only when both dependencies respond.
func Collect(ctx context.Context, db DBPinger, rdb *redis.Client) Result {
	deps := make(map[string]DepStatus)

	dbStatus := DepStatus{Status: "disconnected"}
	if db != nil {
		start := time.Now()
		if err := db.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbStatus = DepStatus{Status: "connected", PingMs: &ms}
		} else {
			dbStatus.Status = "error"
		}
	}
	deps["database"] = dbStatus

	redisStatus := DepStatus{Status: "disconnected"}
	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisStatus = DepStatus{Status: "connected", PingMs: &ms}
		} else {
			redisStatus.Status = "error"
		}
	}
	deps["redis"] = redisStatus

	status := "ok"
	if dbStatus.Status != "connected" || redisStatus.Status != "connected" {
		status = "degraded"
	}
	return Result{
		Status:        status,
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Dependencies:  deps,
	}
}
