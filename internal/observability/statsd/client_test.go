package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  mmk_job_ingest  ": "mmk_job_ingest",
		"..foo..":            "foo",
		".":                  "",
		"":                   "",
	}

	for input, want := range tests {
		if got := sanitizePrefix(input); got != want {
			t.Fatalf("sanitizePrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" ingest/cycle ":   "ingest_cycle",
		"foo..bar":         "foo.bar",
		"multi  space":     "multi__space",
		".ratelimit.wait.": "ratelimit.wait",
	}

	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Fatalf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{
		"env": "prod",
		//nolint:gocritic // whitespace is part of the test case
		" service ": " ingest ",
	}
	local := map[string]string{
		"result": " success ",
		"":       "ignored",
		"env":    "stage",
	}

	got := formatTags(global, local)
	want := "|#env:stage,result:success,service:ingest"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}

	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestLineFormat(t *testing.T) {
	t.Parallel()

	f := lineFormat{prefix: "mmk", globalTags: map[string]string{"env": "test"}}

	if got := f.count("ingest.cycle", 2, map[string]string{"source": "acme"}); got != "mmk.ingest.cycle:2|c|#env:test,source:acme" {
		t.Fatalf("count line = %q", got)
	}
	if got := f.gauge("ratelimit.tokens", 0.5, nil); got != "mmk.ratelimit.tokens:0.5|g|#env:test" {
		t.Fatalf("gauge line = %q", got)
	}
	if got := f.timing("ingest.duration", 1500*time.Microsecond, nil); got != "mmk.ingest.duration:1.5|ms|#env:test" {
		t.Fatalf("timing line = %q", got)
	}
	if got := f.count("  ", 1, nil); got != "" {
		t.Fatalf("blank metric name should render nothing, got %q", got)
	}
}

func TestClientWritesOverConnection(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{line: lineFormat{prefix: "mmk"}, conn: clientConn}

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := peerConn.Read(buf)
		received <- string(buf[:n])
	}()

	client.Count("ingest.cycle", 1, nil)

	select {
	case line := <-received:
		if line != "mmk.ingest.cycle:1|c" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for metric line")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}

	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}

	// Writes after Close are dropped.
	client.Count("ingest.cycle", 1, nil)

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
	nilClient.Gauge("noop", 1, nil)
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		Enabled: true,
		Address: "   ",
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{
		Enabled: true,
		Address: "bad address",
	})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecorderSum(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Count("ingest.postings", 3, map[string]string{"source": "a", "kind": "new"})
	r.Count("ingest.postings", 2, map[string]string{"source": "b", "kind": "new"})
	r.Count("ingest.postings", 4, map[string]string{"source": "a", "kind": "repost"})
	r.Timing("ingest.duration", 2*time.Millisecond, nil)

	if got := r.Sum("ingest.postings", map[string]string{"kind": "new"}); got != 5 {
		t.Fatalf("Sum(new) = %v, want 5", got)
	}
	if got := r.Sum("ingest.postings", map[string]string{"source": "a"}); got != 7 {
		t.Fatalf("Sum(source=a) = %v, want 7", got)
	}
	if got := r.Sum("ingest.duration", nil); got != 2 {
		t.Fatalf("Sum(duration) = %v, want 2", got)
	}
	if len(r.Metrics()) != 4 {
		t.Fatalf("expected 4 recorded metrics, got %d", len(r.Metrics()))
	}
}
