// Package broker wraps github.com/twmb/franz-go in the thin synchronous
// shape spec.md §4.6 describes: an admin client for topic lifecycle, a
// shared producer, and a per-stream consumer factory.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// retentionMs is the fixed one-day retention applied to every topic this
// gateway creates, matching original_source/app/kafka_service.py.
const retentionMs = "86400000"

// produceTimeout bounds how long a single synchronous produce call waits.
const produceTimeout = 10 * time.Second

// ErrUnavailable signals the broker could not be reached; fatal at request
// scope per spec.md §4.6.
var ErrUnavailable = errors.New("broker: unavailable")

// Broker owns the shared kgo client (goroutine-safe for concurrent
// produces) and the kadm admin client built on top of it.
type Broker struct {
	client *kgo.Client
	admin  *kadm.Client
}

// Dial connects to the configured bootstrap servers. Connection is lazy in
// kgo (no network round-trip here); failures surface at first use, as
// spec.md §5 requires.
func Dial(bootstrapServers string) (*Broker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(bootstrapServers),
	)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}
	return &Broker{client: client, admin: kadm.NewClient(client)}, nil
}

func (b *Broker) Close() {
	b.client.Close()
}

// CreateTopic creates a single-partition, single-replica topic with a
// one-day retention. AlreadyExists is returned as ErrTopicAlreadyExists so
// the caller can tell it apart and log it; every other error is returned
// wrapped for the caller to treat as fatal-at-scope.
func (b *Broker) CreateTopic(ctx context.Context, name string) error {
	configs := map[string]*string{"retention.ms": strPtr(retentionMs)}
	resp, err := b.admin.CreateTopics(ctx, 1, 1, configs, name)
	if err != nil {
		return fmt.Errorf("broker: create topic %s: %w", name, err)
	}
	for _, t := range resp {
		if t.Err != nil {
			if errors.Is(t.Err, kerr.TopicAlreadyExists) {
				return ErrTopicAlreadyExists
			}
			return fmt.Errorf("broker: create topic %s: %w", name, t.Err)
		}
	}
	return nil
}

// ErrTopicAlreadyExists lets callers distinguish "already there" from a
// genuine admin failure, per spec.md §4.6.
var ErrTopicAlreadyExists = errors.New("broker: topic already exists")

// DeleteTopic deletes a single topic. Used for best-effort, per-topic
// teardown on project/tenant delete; callers isolate failures per topic.
func (b *Broker) DeleteTopic(ctx context.Context, name string) error {
	resp, err := b.admin.DeleteTopics(ctx, name)
	if err != nil {
		return fmt.Errorf("broker: delete topic %s: %w", name, err)
	}
	for _, t := range resp {
		if t.Err != nil {
			return fmt.Errorf("broker: delete topic %s: %w", name, t.Err)
		}
	}
	return nil
}

// ListTopics is used by the healthcheck: a trivial metadata round-trip
// that must succeed for the gateway to report itself healthy.
func (b *Broker) ListTopics(ctx context.Context) error {
	_, err := b.admin.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ProduceBatch sends records synchronously, in the caller's order, to a
// single topic/partition. The whole batch shares one produceTimeout
// deadline; every record is sent, and the first error among the results,
// if any, is returned.
func (b *Broker) ProduceBatch(ctx context.Context, topic string, values [][]byte) error {
	ctx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()

	records := make([]*kgo.Record, len(values))
	for i, v := range values {
		records[i] = &kgo.Record{Topic: topic, Value: v}
	}

	results := b.client.ProduceSync(ctx, records...)
	return results.FirstErr()
}

// Consumer is a per-stream handle wrapping a dedicated kgo client with its
// own consumer group, so each stream advances offsets independently.
type Consumer struct {
	client *kgo.Client
}

// OpenConsumer constructs a fresh consumer with auto.offset.reset=latest
// and the stream's own consumer group, per spec.md §4.6.
func OpenConsumer(bootstrapServers, topic, group string) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(bootstrapServers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("broker: open consumer: %w", err)
	}
	return &Consumer{client: client}, nil
}

// Poll waits up to timeout for records, returning zero-or-more non-nil
// values (malformed-record filtering is the stream engine's job, not
// the broker's).
func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := c.client.PollFetches(ctx)
	if errs := fetches.Errors(); len(errs) > 0 {
		// A context-deadline-exceeded from an idle poll is not a real
		// fetch error; treat it as "no records this round".
		for _, fe := range errs {
			if !errors.Is(fe.Err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("broker: consume: %w", fe.Err)
			}
		}
	}

	var out [][]byte
	fetches.EachRecord(func(r *kgo.Record) {
		if r.Value != nil {
			out = append(out, r.Value)
		}
	})
	return out, nil
}

func (c *Consumer) Close() {
	c.client.Close()
}

// UserTopicName and ProjectTopicName implement spec.md §6's broker topic
// naming convention.
func UserTopicName(tenantID string) string    { return "user_" + tenantID + "_events" }
func ProjectTopicName(projectID string) string { return "project_" + projectID + "_events" }

func strPtr(s string) *string { return &s }
