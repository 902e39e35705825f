package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/adapters/reaper"
	"github.com/target/mmk-job-ingest/internal/bootstrap"
	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/data"
	"github.com/target/mmk-job-ingest/internal/domain/canonical"
	"github.com/target/mmk-job-ingest/internal/domain/dedup"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	apperrors "github.com/target/mmk-job-ingest/internal/errors"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

// withDatabase connects, runs fn under a signal-aware timeout, and closes the pool.
func withDatabase(cmdCtx *commandContext, timeout time.Duration, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	return fn(ctx, db)
}

type migrateOptions struct {
	Timeout time.Duration
	Status  bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")
	fs.BoolVar(&opts.Status, "status", false, "List migrations and whether they are applied, without applying")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		if opts.Status {
			migrations, err := data.MigrationStatus(ctx, db)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 4, 2, ' ', 0)
			if err := writef(tw, "VERSION\tAPPLIED\n"); err != nil {
				return err
			}
			for _, m := range migrations {
				if err := writef(tw, "%s\t%t\n", m.Version, m.Applied); err != nil {
					return err
				}
			}
			return tw.Flush()
		}

		cmdCtx.Logger.Info("running database migrations")
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
			return err
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runValidateSources(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("validate-sources", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("file", cmdCtx.Config.Ingest.SourcesFile, "Path to the sources YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sources, err := config.LoadSources(*path, cmdCtx.Config.Ingest)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(tw, "NAME\tKIND\tINTERVAL\tTIMEOUT\tBUCKET\tDISABLED\n"); err != nil {
		return err
	}
	for _, s := range sources {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%d @ %g/s\t%t\n",
			s.Name, s.Kind, s.Interval, s.Timeout, s.RateLimit.Capacity, s.RateLimit.RefillPerSecond, s.Disabled,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type runsOptions struct {
	Source string
	Since  time.Duration
	Limit  int
}

func parseRunsFlags(args []string) (runsOptions, error) {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts runsOptions
	fs.StringVar(&opts.Source, "source", "", "Only show runs for this source")
	fs.DurationVar(&opts.Since, "since", 24*time.Hour, "How far back to look")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum rows to print")

	if err := fs.Parse(args); err != nil {
		return runsOptions{}, err
	}
	if opts.Since <= 0 {
		return runsOptions{}, errors.New("--since must be greater than zero")
	}
	if opts.Limit < 1 {
		return runsOptions{}, errors.New("--limit must be at least 1")
	}
	return opts, nil
}

func runListRuns(cmdCtx *commandContext, args []string) error {
	opts, err := parseRunsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		recs, err := data.NewRunRecordRepo(db).ListSince(ctx, core.ListRunRecordsParams{
			Source: opts.Source,
			Since:  time.Now().Add(-opts.Since),
			Limit:  opts.Limit,
		})
		if err != nil {
			return err
		}
		return printRuns(cmdCtx, recs)
	})
}

func printRuns(cmdCtx *commandContext, recs []model.RunRecord) error {
	if len(recs) == 0 {
		return writeln(cmdCtx.Stdout, "No run records found.")
	}
	tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(tw, "SOURCE\tCOMPLETED\tSTATUS\tATTEMPTS\tDURATION\tFOUND\tNEW\tCATEGORY\tDETAIL\n"); err != nil {
		return err
	}
	for _, r := range recs {
		if err := writef(tw, "%s\t%s\t%s\t%d\t%dms\t%d\t%d\t%s\t%s\n",
			r.Source,
			r.CompletedAt.UTC().Format(time.RFC3339),
			r.Status,
			r.Attempts,
			r.DurationMs,
			r.PostingsFound,
			r.PostingsNew,
			r.ErrorCategory,
			truncate(r.ErrorDetail, 60),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runPrune(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", 10*time.Minute, "Maximum duration for the cleanup pass")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		runner, err := reaper.NewRunner(reaper.RunnerOptions{
			DB:     db,
			Config: cmdCtx.Config.Reaper,
			Logger: cmdCtx.Logger,
		})
		if err != nil {
			return err
		}
		report, err := runner.RunOnce(ctx)
		if err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "Deleted %d run records and %d smoke tests in %s.\n",
			report.RunRecords, report.SmokeTests, report.Elapsed.Round(time.Millisecond))
	})
}

type credentialOptions struct {
	Source      string
	Type        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	WarningDays int
}

func parseCredentialFlags(args []string, defaultWarningDays int) (credentialOptions, error) {
	fs := flag.NewFlagSet("set-credential", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts    credentialOptions
		issued  string
		expires string
	)
	fs.StringVar(&opts.Source, "source", "", "Source name (required)")
	fs.StringVar(&opts.Type, "type", "api_token", "Credential type, e.g. api_token or oauth_client")
	fs.StringVar(&issued, "issued", "", "Issue time, RFC 3339 (default now)")
	fs.StringVar(&expires, "expires", "", "Expiry time, RFC 3339 or YYYY-MM-DD (required)")
	fs.IntVar(&opts.WarningDays, "warning-days", defaultWarningDays, "Days before expiry to start warning")

	if err := fs.Parse(args); err != nil {
		return credentialOptions{}, err
	}
	opts.Source = strings.TrimSpace(opts.Source)
	if opts.Source == "" {
		return credentialOptions{}, errors.New("--source is required")
	}
	if expires == "" {
		return credentialOptions{}, errors.New("--expires is required")
	}

	var err error
	if opts.ExpiresAt, err = parseTimeFlag(expires); err != nil {
		return credentialOptions{}, fmt.Errorf("--expires: %w", err)
	}
	if issued != "" {
		if opts.IssuedAt, err = parseTimeFlag(issued); err != nil {
			return credentialOptions{}, fmt.Errorf("--issued: %w", err)
		}
	}
	if opts.WarningDays < 0 {
		return credentialOptions{}, errors.New("--warning-days cannot be negative")
	}
	return opts, nil
}

func parseTimeFlag(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func runSetCredential(cmdCtx *commandContext, args []string) error {
	opts, err := parseCredentialFlags(args, cmdCtx.Config.Health.CredentialWarningDays)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		cred := &model.CredentialHealth{
			Source:               opts.Source,
			CredentialType:       opts.Type,
			IssuedAt:             opts.IssuedAt,
			ExpiresAt:            opts.ExpiresAt,
			WarningThresholdDays: opts.WarningDays,
		}
		if err := data.NewCredentialRepo(db).Upsert(ctx, cred); err != nil {
			return err
		}
		cmdCtx.Logger.Info("credential metadata saved",
			"source", cred.Source,
			"expires_at", cred.ExpiresAt,
			"warning_days", cred.WarningThresholdDays,
		)
		return nil
	})
}

type fingerprintOptions struct {
	Title    string
	Company  string
	Location string
	URL      string
	Lookup   bool
}

func parseFingerprintFlags(args []string) (fingerprintOptions, error) {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts fingerprintOptions
	fs.StringVar(&opts.Title, "title", "", "Posting title")
	fs.StringVar(&opts.Company, "company", "", "Company name")
	fs.StringVar(&opts.Location, "location", "", "Location")
	fs.StringVar(&opts.URL, "url", "", "Posting URL")
	fs.BoolVar(&opts.Lookup, "lookup", false, "Look up the stored posting in Postgres")

	if err := fs.Parse(args); err != nil {
		return fingerprintOptions{}, err
	}
	if strings.TrimSpace(opts.Title) == "" && strings.TrimSpace(opts.URL) == "" {
		return fingerprintOptions{}, errors.New("at least one of --title or --url is required")
	}
	return opts, nil
}

func runFingerprint(cmdCtx *commandContext, args []string) error {
	opts, err := parseFingerprintFlags(args)
	if err != nil {
		return err
	}

	canon := canonical.Default()
	hash := dedup.Fingerprint(canon, opts.Title, opts.Company, opts.Location, opts.URL)

	tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"title", canon.Title(opts.Title)},
		{"company", canon.Company(opts.Company)},
		{"location", canon.Location(opts.Location)},
		{"url", canon.URL(opts.URL)},
		{"fingerprint", hash},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !opts.Lookup {
		return nil
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		stored, err := data.NewPostingRepo(db).Get(ctx, hash)
		if apperrors.IsNotFound(err) {
			return writeln(cmdCtx.Stdout, "\nNot stored.")
		}
		if err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "\nStored: first seen %s, last seen %s, reposts %d, sources %s\n",
			stored.FirstSeenAt.UTC().Format(time.RFC3339),
			stored.LastSeenAt.UTC().Format(time.RFC3339),
			stored.RepostCount,
			strings.Join(stored.Sources, ","),
		)
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
