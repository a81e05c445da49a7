// Package feed fetches hazard records from upstream JSON APIs.
//
// A feed is described by a URL, a dot path to the array of items in the
// response, and a mapping from record fields to dot paths inside each item.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
)

const (
	maxBodyBytes   = 10 << 20
	metadataPrefix = "metadata."
	userAgent      = "hazard-sync/1.0"
)

// Config describes how to call and parse one feed.
type Config struct {
	Name       string
	URL        string            // ${ENV_VAR} expanded
	Headers    map[string]string // ${ENV_VAR} expanded
	ResultPath string            // dot path to the item array: "data.storms"
	// Fields maps record fields (id, type, severity, title, description,
	// lat, lng, event_at, intensity) and "metadata.<key>" entries to dot
	// paths inside an item. Empty means items already use record field names.
	Fields     map[string]string
	MaxRecords int
	Timeout    time.Duration
}

// Fetcher pulls one JSON feed over HTTP.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. A nil client gets one with cfg.Timeout.
func NewFetcher(cfg Config, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger.With("feed", cfg.Name)}
}

// Fetch calls the feed and maps every object item into a record. Items that
// are not JSON objects are skipped.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.RawHazardRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, expandEnv(f.cfg.URL), nil)
	if err != nil {
		return nil, fmt.Errorf("feed %s: new request: %w", f.cfg.Name, err)
	}
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, expandEnv(v))
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed %s: http: %w", f.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed %s: http %d", f.cfg.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("feed %s: read body: %w", f.cfg.Name, err)
	}

	// Numbers stay json.Number so large numeric ids keep every digit.
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("feed %s: json decode: %w", f.cfg.Name, err)
	}

	items, err := walkPath(raw, f.cfg.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("feed %s: walk path %q: %w", f.cfg.Name, f.cfg.ResultPath, err)
	}

	records := make([]domain.RawHazardRecord, 0, len(items))
	skipped := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		records = append(records, mapRecord(obj, f.cfg.Fields))
		if f.cfg.MaxRecords > 0 && len(records) >= f.cfg.MaxRecords {
			break
		}
	}
	if skipped > 0 {
		f.logger.Warn("skipped non-object feed items", "count", skipped)
	}
	return records, nil
}

// walkPath follows a dot path into v and returns the array found there. An
// empty path requires the root itself to be an array.
func walkPath(v any, path string) ([]any, error) {
	current := v
	if path != "" {
		var ok bool
		current, ok = lookup(v, path)
		if !ok {
			return nil, fmt.Errorf("path not found")
		}
	}
	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", current)
	}
	return arr, nil
}

// lookup resolves a dot path inside nested objects.
func lookup(v any, path string) (any, bool) {
	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func mapRecord(obj map[string]any, fields map[string]string) domain.RawHazardRecord {
	get := func(field string) any {
		path := field
		if fields != nil {
			p, ok := fields[field]
			if !ok {
				return nil
			}
			path = p
		}
		v, _ := lookup(obj, path)
		return v
	}

	rec := domain.RawHazardRecord{
		ID:          asString(get("id")),
		Type:        asString(get("type")),
		Severity:    optString(get("severity")),
		Title:       optString(get("title")),
		Description: optString(get("description")),
		Lat:         optFloat(get("lat")),
		Lng:         optFloat(get("lng")),
		EventAt:     optTime(get("event_at")),
		Intensity:   optFloat(get("intensity")),
	}

	md := domain.Metadata{}
	if fields == nil {
		if m, ok := obj["metadata"].(map[string]any); ok {
			maps.Copy(md, plainNumbers(m).(map[string]any))
		}
	}
	for field, path := range fields {
		key, ok := strings.CutPrefix(field, metadataPrefix)
		if !ok || key == "" {
			continue
		}
		if v, found := lookup(obj, path); found && v != nil {
			md[key] = plainNumbers(v)
		}
	}
	if len(md) > 0 {
		rec.Metadata = md
	}
	return rec
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func optString(v any) *string {
	s := asString(v)
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(v any) *float64 {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return &f
	case float64:
		return &t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly}

// Numeric timestamps beyond this are read as unix milliseconds. As seconds
// it would be the year 5138.
const unixMillisThreshold = 1e11

// optTime accepts RFC 3339 and a few looser layouts (read as UTC), or unix
// seconds or milliseconds.
func optTime(v any) *time.Time {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return unixTime(f)
	case float64:
		return unixTime(t)
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				ts = ts.UTC()
				return &ts
			}
		}
	}
	return nil
}

func unixTime(f float64) *time.Time {
	var ts time.Time
	if math.Abs(f) >= unixMillisThreshold {
		ts = time.UnixMilli(int64(f)).UTC()
	} else {
		ts = time.Unix(int64(f), 0).UTC()
	}
	return &ts
}

// plainNumbers turns json.Number values inside v into float64, the shape
// metadata has everywhere else.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainNumbers(e)
		}
		return out
	}
	return v
}

func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}
