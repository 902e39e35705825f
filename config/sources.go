package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// SourcesFile is the on-disk shape of INGEST_SOURCES_FILE.
type SourcesFile struct {
	Sources []model.SourceConfig `yaml:"sources"`
}

// LoadSources reads and validates the per-source YAML file.
// Zero interval and timeout values fall back to the ingest defaults.
func LoadSources(path string, defaults IngestConfig) ([]model.SourceConfig, error) {
	//nolint:gosec // path comes from operator configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(raw, defaults.DefaultInterval, defaults.DefaultTimeout)
}

// ParseSources decodes sources YAML, applies defaults, and validates every entry.
// Unknown keys are rejected so typos surface at startup.
func ParseSources(raw []byte, interval, timeout time.Duration) ([]model.SourceConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var file SourcesFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	if len(file.Sources) == 0 {
		return nil, errors.New("sources file defines no sources")
	}

	seen := make(map[string]struct{}, len(file.Sources))
	var errs []error
	for i := range file.Sources {
		src := &file.Sources[i]
		src.ApplyDefaults(interval, timeout)
		if err := src.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[src.Name]; dup {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name))
			continue
		}
		seen[src.Name] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return file.Sources, nil
}
