package backups

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// PgDumpRunner produces a compressed logical dump per tenant schedule.
type PgDumpRunner struct {
	DSN     string
	Dir     string
	Timeout time.Duration
}

// Run shells out to pg_dump and writes the artifact under Dir. The dump covers
// the whole database; tenant scoping happens at restore time.
func (r PgDumpRunner) Run(ctx context.Context, schedule Schedule) (string, error) {
	if r.DSN == "" {
		return "", fmt.Errorf("backups: dump dsn not configured")
	}
	dir := r.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("backups: prepare dir: %w", err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := fmt.Sprintf("tenant-%d-%s.dump", schedule.TenantID, time.Now().UTC().Format("20060102-150405"))
	location := filepath.Join(dir, name)

	cmd := exec.CommandContext(ctx, "pg_dump", "--format=custom", "--file", location, r.DSN)
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(location)
		return "", fmt.Errorf("backups: pg_dump: %w: %s", err, string(out))
	}
	return location, nil
}
