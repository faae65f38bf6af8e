// Package migrate applies the goose SQL migrations under migrations/ and
// provides the create and validate helpers used by cmd/migrate.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// Runner drives a goose provider and logs every applied version.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(db *sql.DB, dir string, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("open migrations in %q: %w", dir, err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Apply runs one of up, down, redo or status.
func (r *Runner) Apply(ctx context.Context, command string) error {
	switch command {
	case "up":
		results, err := r.provider.Up(ctx)
		r.report(ctx, results...)
		return wrapGoose(command, err)
	case "down":
		result, err := r.provider.Down(ctx)
		r.report(ctx, result)
		return wrapGoose(command, err)
	case "redo":
		down, err := r.provider.Down(ctx)
		r.report(ctx, down)
		if err != nil {
			return wrapGoose(command, err)
		}
		up, err := r.provider.UpByOne(ctx)
		r.report(ctx, up)
		return wrapGoose(command, err)
	case "status":
		return r.status(ctx)
	default:
		return fmt.Errorf("unsupported migrate command %q", command)
	}
}

// To moves the schema up or down until version is the latest applied.
func (r *Runner) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	case current > target:
		results, err = r.provider.DownTo(ctx, target)
	}
	r.report(ctx, results...)
	return wrapGoose("to "+version, err)
}

func (r *Runner) status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return wrapGoose("status", err)
	}
	for _, st := range statuses {
		fields := map[string]any{
			"version": st.Source.Version,
			"file":    st.Source.Path,
			"state":   string(st.State),
		}
		if !st.AppliedAt.IsZero() {
			fields["applied_at"] = st.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migrate.status")
	}
	return nil
}

func (r *Runner) report(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"version":   res.Source.Version,
			"file":      res.Source.Path,
			"direction": res.Direction,
			"took":      res.Duration.String(),
		})
		if res.Error != nil {
			r.logg.Error(logCtx, "migrate.failed", res.Error)
			continue
		}
		r.logg.Info(logCtx, "migrate.applied")
	}
}

func wrapGoose(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
