// Package dedup collapses the same real-world posting seen through different sources or URLs
// into one fingerprint, and keeps first-seen/last-seen/repost bookkeeping for it.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/canonical"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// fieldSeparator is the ASCII unit separator; it cannot appear in canonicalized fields.
const fieldSeparator = "\x1f"

// ErrEmptyHash is returned when Observe is called without a fingerprint.
var ErrEmptyHash = errors.New("dedup: empty fingerprint hash")

// Store persists fingerprints. Upsert must be atomic per hash: concurrent calls for the same
// hash must observe exactly one insert.
type Store interface {
	// Upsert creates the fingerprint with RepostCount 1 when unseen, otherwise bumps
	// RepostCount and LastSeenAt. created reports whether this call inserted it.
	Upsert(ctx context.Context, hash string, observedAt time.Time) (fp model.JobFingerprint, created bool, err error)
	// Get returns the stored fingerprint, if any.
	Get(ctx context.Context, hash string) (model.JobFingerprint, bool, error)
}

// ObserveResult is the outcome of observing one fingerprint.
type ObserveResult struct {
	IsNew       bool
	RepostCount int
}

// Options configures a Deduplicator.
type Options struct {
	Store     Store                    // Required
	Canonical *canonical.Canonicalizer // Optional: defaults to canonical.Default()
}

// Deduplicator fingerprints postings and records each observation.
type Deduplicator struct {
	store Store
	canon *canonical.Canonicalizer
}

// New constructs a Deduplicator.
func New(opts Options) (*Deduplicator, error) {
	if opts.Store == nil {
		return nil, errors.New("dedup: store is required")
	}
	canon := opts.Canonical
	if canon == nil {
		canon = canonical.Default()
	}
	return &Deduplicator{store: opts.Store, canon: canon}, nil
}

// Fingerprint returns the SHA-256 hex digest of the canonicalized title, company, location,
// and URL, in that order.
func (d *Deduplicator) Fingerprint(title, company, location, rawURL string) string {
	return Fingerprint(d.canon, title, company, location, rawURL)
}

// FingerprintPosting fingerprints a raw posting.
func (d *Deduplicator) FingerprintPosting(p model.RawPosting) string {
	return d.Fingerprint(p.Title, p.Company, p.Location, p.URL)
}

// Observe records that hash was seen at observedAt.
func (d *Deduplicator) Observe(ctx context.Context, hash string, observedAt time.Time) (ObserveResult, error) {
	if hash == "" {
		return ObserveResult{}, ErrEmptyHash
	}
	fp, created, err := d.store.Upsert(ctx, hash, observedAt)
	if err != nil {
		return ObserveResult{}, fmt.Errorf("observe fingerprint: %w", err)
	}
	return ObserveResult{IsNew: created, RepostCount: fp.RepostCount}, nil
}

// Fingerprint computes the posting fingerprint with an explicit canonicalizer.
func Fingerprint(c *canonical.Canonicalizer, title, company, location, rawURL string) string {
	if c == nil {
		c = canonical.Default()
	}
	joined := strings.Join([]string{
		c.Title(title),
		c.Company(company),
		c.Location(location),
		c.URL(rawURL),
	}, fieldSeparator)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
