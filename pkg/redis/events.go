package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/hbgk/gkpulse/pkg/ingest"
)

// Default stream and channel for ingest events.
const (
	IngestStream  = "gkpulse:ingest"
	IngestChannel = "gkpulse:ingest"
)

type eventSink interface {
	XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error)
	Publish(ctx context.Context, channel string, message interface{})
}

// Notifier broadcasts committed ingest batches: each event is appended to a stream for
// consumers that may lag, and published on a channel for live listeners.
type Notifier struct {
	sink    eventSink
	Stream  string
	Channel string
}

// NewNotifier returns a notifier writing to IngestStream and IngestChannel.
func NewNotifier(c *Client) *Notifier {
	return &Notifier{sink: c, Stream: IngestStream, Channel: IngestChannel}
}

// Notify implements ingest.Notifier. The stream write is authoritative; the publish is
// best-effort.
func (n *Notifier) Notify(ctx context.Context, ev ingest.Event) error {
	values, err := EventValues(ev)
	if err != nil {
		return err
	}
	if _, err := n.sink.XAdd(ctx, n.Stream, values); err != nil {
		return err
	}
	n.sink.Publish(ctx, n.Channel, values["data"])
	return nil
}

// EventValues flattens an event into stream fields. "data" carries the full JSON body.
func EventValues(ev ingest.Event) (map[string]interface{}, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode ingest event: %w", err)
	}
	return map[string]interface{}{
		"kind":    string(ev.Kind),
		"date":    ev.Date,
		"records": ev.Records,
		"data":    string(data),
	}, nil
}

// DecodeEvent rebuilds an event from a stream message. Messages without a JSON body fall
// back to the flat fields.
func DecodeEvent(msg Message) (ingest.Event, error) {
	if data := msg.GetData(); len(data) > 0 {
		var ev ingest.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return ingest.Event{}, fmt.Errorf("decode ingest event %s: %w", msg.ID, err)
		}
		return ev, nil
	}
	kind := msg.GetString("kind")
	if kind == "" {
		return ingest.Event{}, fmt.Errorf("message %s carries no ingest event", msg.ID)
	}
	return ingest.Event{
		Kind:    ingest.Kind(kind),
		Date:    msg.GetString("date"),
		Records: msg.GetInt("records"),
		At:      streamTime(msg.ID),
	}, nil
}

// streamTime recovers the millisecond timestamp embedded in a stream ID.
func streamTime(id string) time.Time {
	var ms int64
	if _, err := fmt.Sscanf(id, "%d-", &ms); err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
