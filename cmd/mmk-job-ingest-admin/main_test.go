package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printUsage(&out))

	text := out.String()
	for name := range commands() {
		assert.Contains(t, text, "  "+name)
	}
	assert.Less(t, strings.Index(text, "disable"), strings.Index(text, "migrate"))
}

func TestParseCredentialFlags(t *testing.T) {
	opts, err := parseCredentialFlags([]string{
		"--source", "greenhouse",
		"--expires", "2026-12-31",
		"--issued", "2026-01-01T00:00:00Z",
	}, 30)
	require.NoError(t, err)
	assert.Equal(t, "greenhouse", opts.Source)
	assert.Equal(t, 30, opts.WarningDays)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), opts.ExpiresAt)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), opts.IssuedAt)

	_, err = parseCredentialFlags([]string{"--expires", "2026-12-31"}, 30)
	require.EqualError(t, err, "--source is required")

	_, err = parseCredentialFlags([]string{"--source", "greenhouse", "--expires", "soon"}, 30)
	require.Error(t, err)

	_, err = parseCredentialFlags([]string{"--source", "greenhouse", "--expires", "2026-12-31", "--warning-days", "-1"}, 30)
	require.Error(t, err)
}

func TestParseRunsFlags(t *testing.T) {
	opts, err := parseRunsFlags([]string{"--source", "lever", "--since", "2h"})
	require.NoError(t, err)
	assert.Equal(t, "lever", opts.Source)
	assert.Equal(t, 2*time.Hour, opts.Since)
	assert.Equal(t, 50, opts.Limit)

	_, err = parseRunsFlags([]string{"--limit", "0"})
	require.Error(t, err)
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags([]string{"--status"})
	require.NoError(t, err)
	assert.True(t, opts.Status)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestRunFingerprintCollapsesFormattingNoise(t *testing.T) {
	cmdCtx, out := newTestCommandContext(t, "")
	require.NoError(t, runFingerprint(cmdCtx, []string{
		"--title", "Senior Software Engineer",
		"--company", "Acme Inc.",
		"--url", "https://jobs.example.com/123?utm_source=x",
	}))
	first := fingerprintLine(t, out.String())

	out.Reset()
	require.NoError(t, runFingerprint(cmdCtx, []string{
		"--title", "  senior software engineer ",
		"--company", "  ACME   Inc. ",
		"--url", "https://jobs.example.com/123",
	}))
	assert.Equal(t, first, fingerprintLine(t, out.String()))

	require.Error(t, runFingerprint(cmdCtx, nil))
}

func fingerprintLine(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "fingerprint") {
			return strings.TrimSpace(strings.TrimPrefix(line, "fingerprint"))
		}
	}
	t.Fatalf("no fingerprint line in %q", out)
	return ""
}

func TestPrintRuns(t *testing.T) {
	cmdCtx, out := newTestCommandContext(t, "")
	require.NoError(t, printRuns(cmdCtx, nil))
	assert.Contains(t, out.String(), "No run records found.")

	out.Reset()
	require.NoError(t, printRuns(cmdCtx, []model.RunRecord{{
		Source:        "greenhouse",
		CompletedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:        model.RunStatusFailed,
		Attempts:      3,
		ErrorCategory: model.ErrorCategoryTimeout,
		ErrorDetail:   "adapter did not return within 30s",
	}}))
	assert.Contains(t, out.String(), "2026-03-01T12:00:00Z")
	assert.Contains(t, out.String(), "timeout")
}
