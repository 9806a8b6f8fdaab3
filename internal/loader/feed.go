package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RawEvent is the wire form of a change event: the row payload stays raw
// until a subscriber decodes it into its own type.
type RawEvent struct {
	Kind           EventKind       `json:"kind"`
	Table          string          `json:"table"`
	OrganizationID int64           `json:"organization_id"`
	Row            json.RawMessage `json:"row"`
}

// Decode turns a raw event into a typed ChangeEvent.
func Decode[T any](raw RawEvent) (ChangeEvent[T], error) {
	var row T
	if err := json.Unmarshal(raw.Row, &row); err != nil {
		return ChangeEvent[T]{}, fmt.Errorf("decode %s event: %w", raw.Table, err)
	}
	return ChangeEvent[T]{
		Kind:           raw.Kind,
		Table:          raw.Table,
		OrganizationID: raw.OrganizationID,
		Row:            row,
	}, nil
}

// Feed is the realtime change feed over redis pub/sub. Services publish
// after every successful write; subscribers fan the events out to connected
// clients.
type Feed struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewFeed builds a feed over the shared redis client.
func NewFeed(rdb *redis.Client, logger *slog.Logger) *Feed {
	return &Feed{rdb: rdb, logger: logger}
}

func channelFor(table string) string {
	return "feed:" + table
}

// Publish emits a change event. Failures are logged, not returned: the
// write already committed and the feed is best effort.
func (f *Feed) Publish(ctx context.Context, table string, orgID int64, kind string, row any) {
	rowJSON, err := json.Marshal(row)
	if err != nil {
		f.logger.Error("marshal feed event", slog.String("table", table), slog.Any("error", err))
		return
	}
	payload, err := json.Marshal(RawEvent{
		Kind:           EventKind(kind),
		Table:          table,
		OrganizationID: orgID,
		Row:            rowJSON,
	})
	if err != nil {
		f.logger.Error("marshal feed envelope", slog.String("table", table), slog.Any("error", err))
		return
	}
	if err := f.rdb.Publish(ctx, channelFor(table), payload).Err(); err != nil {
		f.logger.Error("publish feed event", slog.String("table", table), slog.Any("error", err))
	}
}

// Subscribe streams raw events for one table until ctx is cancelled.
func (f *Feed) Subscribe(ctx context.Context, table string) (<-chan RawEvent, error) {
	sub := f.rdb.Subscribe(ctx, channelFor(table))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	out := make(chan RawEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event RawEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.logger.Warn("drop malformed feed event", slog.String("table", table), slog.Any("error", err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
