package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdout io.Writer
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Stdout: os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations (--status lists them without applying)",
			run:         runMigrations,
		},
		"validate-sources": {
			name:        "validate-sources",
			description: "Parse and validate the sources file",
			run:         runValidateSources,
		},
		"runs": {
			name:        "runs",
			description: "List recent run records from Postgres",
			run:         runListRuns,
		},
		"prune": {
			name:        "prune",
			description: "Delete run records and smoke tests past retention",
			run:         runPrune,
		},
		"set-credential": {
			name:        "set-credential",
			description: "Record credential validity metadata for a source",
			run:         runSetCredential,
		},
		"fingerprint": {
			name:        "fingerprint",
			description: "Show the canonical form and fingerprint of a posting, and any stored copy",
			run:         runFingerprint,
		},
		"health": {
			name:        "health",
			description: "Show source health from the operator API",
			run:         runHealth,
		},
		"enable": {
			name:        "enable",
			description: "Re-enable a source through the operator API",
			run:         sourceAction("enable", "/enable"),
		},
		"disable": {
			name:        "disable",
			description: "Disable a source through the operator API",
			run:         sourceAction("disable", "/disable"),
		},
		"smoke-test": {
			name:        "smoke-test",
			description: "Run a smoke test for a source through the operator API",
			run:         sourceAction("smoke-test", "/smoke-test"),
		},
		"reset-limit": {
			name:        "reset-limit",
			description: "Refill a source's rate limit bucket through the operator API",
			run:         sourceAction("reset-limit", "/rate-limit/reset"),
		},
		"trigger": {
			name:        "trigger",
			description: "Run a source's next cycle now through the operator API",
			run:         sourceAction("trigger", "/trigger"),
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: mmk-job-ingest-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-18s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
