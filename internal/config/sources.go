package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"gopkg.in/yaml.v3"
)

// SourceKind selects the fetcher implementation for a catalog entry.
type SourceKind string

const (
	SourceKindHTTP  SourceKind = "http"
	SourceKindKafka SourceKind = "kafka"
)

const defaultSourceTimeout = 30 * time.Second

// Source is one upstream hazard feed in the catalog.
//
// For http sources, ResultPath is a dot path to the array of items in the
// JSON response and Fields maps record fields (id, type, severity, title,
// description, lat, lng, event_at, intensity) to dot paths inside each item.
// Fields prefixed with "metadata." are copied into the record metadata.
// Header values may reference environment variables as ${NAME}.
type Source struct {
	Name       string            `yaml:"name"`
	Kind       SourceKind        `yaml:"kind"`
	URL        string            `yaml:"url"`
	ResultPath string            `yaml:"result_path"`
	Fields     map[string]string `yaml:"fields"`
	Headers    map[string]string `yaml:"headers"`
	Topic      string            `yaml:"topic"`
	Interval   time.Duration     `yaml:"interval"`
	Timeout    time.Duration     `yaml:"timeout"`
	MaxRecords int               `yaml:"max_records"`
	// Geocode enables forward geocoding of records without coordinates.
	Geocode bool `yaml:"geocode"`
}

type catalog struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads the YAML source catalog at path. Sources without an
// interval inherit defaultInterval.
func LoadSources(path string, defaultInterval time.Duration) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(bytes.NewReader(data), defaultInterval)
}

// ParseSources decodes and validates a source catalog.
func ParseSources(r io.Reader, defaultInterval time.Duration) ([]Source, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Kind == "" {
			s.Kind = SourceKindHTTP
		}
		if s.Interval <= 0 {
			s.Interval = defaultInterval
		}
		if s.Timeout <= 0 {
			s.Timeout = defaultSourceTimeout
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %q is listed twice", s.Name)
		}
		seen[s.Name] = true
	}
	return c.Sources, nil
}

func (s Source) validate() error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.Name == domain.ConvergenceSource:
		return fmt.Errorf("name %q is reserved", s.Name)
	case s.MaxRecords < 0:
		return fmt.Errorf("%s: max_records must not be negative", s.Name)
	}
	switch s.Kind {
	case SourceKindHTTP:
		if s.URL == "" {
			return fmt.Errorf("%s: url is required for http sources", s.Name)
		}
	case SourceKindKafka:
		if s.Topic == "" {
			return fmt.Errorf("%s: topic is required for kafka sources", s.Name)
		}
	default:
		return fmt.Errorf("%s: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}
