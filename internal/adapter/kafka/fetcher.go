package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	defaultIdleTimeout = 2 * time.Second
	defaultMaxRecords  = 1000
)

// FetcherConfig describes one Kafka-backed hazard source.
type FetcherConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// MaxRecords bounds one drain. Zero means 1000.
	MaxRecords int
	// Timeout bounds one whole drain.
	Timeout time.Duration
	// IdleTimeout ends a drain once no message arrives for this long.
	IdleTimeout time.Duration
}

// Fetcher drains a topic of JSON hazard records on every Fetch. The "id"
// field may be a string or a number. Offsets are committed once the batch
// has been decoded, before the records are upserted, so delivery is
// at-most-once.
type Fetcher struct {
	reader *kafkago.Reader
	cfg    FetcherConfig
	logger *slog.Logger
}

// NewFetcher creates a consumer-group reader for cfg.Topic.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRecords
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	return &Fetcher{reader: r, cfg: cfg, logger: logger.With("topic", cfg.Topic)}
}

// Fetch reads whatever is currently available on the topic, up to
// MaxRecords. Messages that do not decode are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.RawHazardRecord, error) {
	drainCtx := ctx
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	var (
		records []domain.RawHazardRecord
		msgs    []kafkago.Message
	)
	for len(msgs) < f.cfg.MaxRecords {
		msg, err := f.next(drainCtx)
		if err != nil {
			if errors.Is(err, errDrained) {
				break
			}
			return nil, fmt.Errorf("read %s: %w", f.cfg.Topic, err)
		}
		msgs = append(msgs, msg)

		rec, err := decodeMessage(msg)
		if err != nil {
			f.logger.Warn("skipping undecodable message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		records = append(records, rec)
	}

	// Commit on the caller's context: the drain deadline may already be spent.
	if len(msgs) > 0 {
		if err := f.reader.CommitMessages(ctx, msgs...); err != nil {
			return nil, fmt.Errorf("commit %s offsets: %w", f.cfg.Topic, err)
		}
	}
	f.logger.Debug("topic drained", "messages", len(msgs), "records", len(records))
	return records, nil
}

var errDrained = errors.New("no message within idle timeout")

// next waits up to IdleTimeout for the next message. It reports errDrained
// when the topic goes quiet or the drain deadline passes; cancellation of the
// caller's context is returned as is.
func (f *Fetcher) next(ctx context.Context) (kafkago.Message, error) {
	idleCtx, cancel := context.WithTimeout(ctx, f.cfg.IdleTimeout)
	defer cancel()

	msg, err := f.reader.FetchMessage(idleCtx)
	if err == nil {
		return msg, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(context.Cause(ctx), context.Canceled) {
		return kafkago.Message{}, errDrained
	}
	return kafkago.Message{}, err
}

// Close shuts down the underlying consumer.
func (f *Fetcher) Close() error {
	return f.reader.Close()
}

// messageID accepts "id" as a JSON string or number. Numbers keep their
// literal digits, so large ids are not rounded through float64.
type messageID string

func (id *messageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = messageID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		*id = messageID(n.String())
	}
	return nil
}

// wireRecord is the message payload; its ID shadows the record's string ID.
type wireRecord struct {
	ID messageID `json:"id"`
	domain.RawHazardRecord
}

// decodeMessage parses a message value into a record. The message key is
// used as the external id when the payload carries none.
func decodeMessage(msg kafkago.Message) (domain.RawHazardRecord, error) {
	var wire wireRecord
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		return domain.RawHazardRecord{}, fmt.Errorf("decode hazard record: %w", err)
	}
	rec := wire.RawHazardRecord
	rec.ID = strings.TrimSpace(string(wire.ID))
	if rec.ID == "" {
		rec.ID = string(msg.Key)
	}
	if rec.EventAt == nil && !msg.Time.IsZero() {
		t := msg.Time.UTC()
		rec.EventAt = &t
	}
	return rec, nil
}
