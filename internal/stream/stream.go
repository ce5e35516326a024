// Package stream implements the gateway's SSE stream pump: a producer
// task that polls a dedicated broker consumer, and a writer task that
// drains a bounded event channel onto the HTTP response. Adapted from the
// teacher's single-writer SSEStream (mcpserver/server/sse.go) into the
// two-cooperating-tasks shape spec.md §4.8 requires.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gmslzr/kafka-gateway/internal/apperr"
	"github.com/gmslzr/kafka-gateway/internal/broker"
)

const (
	eventChannelCap  = 64
	pollTimeout      = 1 * time.Second
	heartbeatEvery   = 20 * time.Second
	writerIdleWait   = 1 * time.Second
)

type eventKind int

const (
	eventMessage eventKind = iota
	eventHeartbeat
	eventError
)

type event struct {
	kind  eventKind
	value []byte
	ts    time.Time
	err   error
}

// EndReason classifies why a stream terminated, for the single "stream
// end" log line spec.md §4.8 requires.
type EndReason string

const (
	EndClient   EndReason = "client"
	EndQuota    EndReason = "quota"
	EndBroker   EndReason = "broker"
	EndInternal EndReason = "internal"
)

// consumer is the narrow surface runProducer needs from *broker.Consumer.
// Declaring it lets tests drive runProducer with a fake, without the
// production Pump signature losing the concrete broker type.
type consumer interface {
	Poll(ctx context.Context, timeout time.Duration) ([][]byte, error)
	Close()
}

// Pump runs one stream's producer task and writer task to completion. It
// blocks until the stream ends, for any reason, and returns the reason.
func Pump(ctx context.Context, w http.ResponseWriter, log zerolog.Logger, consumer *broker.Consumer, checkOutbound func(ctx context.Context, messages, bytes int64) error) EndReason {
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error().Msg("response writer does not support flushing; cannot stream")
		return EndInternal
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	events := make(chan event, eventChannelCap)
	stop := make(chan struct{})
	var stopped bool
	signalStop := func() {
		if !stopped {
			stopped = true
			close(stop)
		}
	}

	producerDone := make(chan struct{})
	go runProducer(ctx, consumer, events, stop, producerDone, log)

	reason := runWriter(ctx, w, flusher, events, checkOutbound, log)
	signalStop()
	<-producerDone
	return reason
}

// runProducer repeatedly polls the consumer, enqueuing a MESSAGE event per
// non-null record and a HEARTBEAT event every 20s of wall time. It owns
// the consumer and is the only goroutine permitted to close it.
func runProducer(ctx context.Context, consumer consumer, events chan<- event, stop <-chan struct{}, done chan<- struct{}, log zerolog.Logger) {
	defer close(done)
	defer consumer.Close()

	lastHeartbeat := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		records, err := consumer.Poll(ctx, pollTimeout)
		if err != nil {
			select {
			case events <- event{kind: eventError, err: err}:
			case <-stop:
			}
			return
		}

		for _, v := range records {
			select {
			case events <- event{kind: eventMessage, value: v}:
			case <-stop:
				return
			}
		}

		if time.Since(lastHeartbeat) >= heartbeatEvery {
			if trySendHeartbeat(events, time.Now()) {
				lastHeartbeat = time.Now()
			}
		}
	}
}

// trySendHeartbeat is the producer's best-effort heartbeat enqueue: it
// drops silently if the channel is full rather than blocking the producer
// on a non-essential event, per the gateway's backpressure rule.
func trySendHeartbeat(events chan<- event, ts time.Time) bool {
	select {
	case events <- event{kind: eventHeartbeat, ts: ts}:
		return true
	default:
		return false
	}
}

// runWriter drains the event channel onto the SSE response, accounting
// outbound quota per message and emitting heartbeats when idle.
func runWriter(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, events <-chan event, checkOutbound func(ctx context.Context, messages, bytes int64) error, log zerolog.Logger) EndReason {
	lastHeartbeatSent := time.Now()

	for {
		select {
		case <-ctx.Done():
			return EndClient
		case ev := <-events:
			switch ev.kind {
			case eventMessage:
				var decoded any
				if err := json.Unmarshal(ev.value, &decoded); err != nil {
					log.Warn().Err(err).Msg("skipping malformed stream record")
					continue
				}
				payload, err := json.Marshal(map[string]any{
					"value":     decoded,
					"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
				})
				if err != nil {
					log.Warn().Err(err).Msg("failed to encode stream payload")
					continue
				}

				if err := checkOutbound(ctx, 1, int64(len(payload))); err != nil {
					if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindQuotaBreach {
						fmt.Fprint(w, "data: {\"error\":\"Quota exceeded\"}\n\n")
						flusher.Flush()
						return EndQuota
					}
					log.Error().Err(err).Msg("outbound quota check failed")
					fmt.Fprint(w, "data: {\"error\":\"Consumer error\"}\n\n")
					flusher.Flush()
					return EndInternal
				}

				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return EndClient
				}
				flusher.Flush()

			case eventHeartbeat:
				fmt.Fprintf(w, ": heartbeat %d\n\n", ev.ts.Unix())
				flusher.Flush()
				lastHeartbeatSent = time.Now()

			case eventError:
				log.Warn().Err(ev.err).Msg("stream consumer error")
				fmt.Fprint(w, "data: {\"error\":\"Consumer error\"}\n\n")
				flusher.Flush()
				return EndBroker
			}

		case <-time.After(writerIdleWait):
			if time.Since(lastHeartbeatSent) >= heartbeatEvery {
				fmt.Fprintf(w, ": heartbeat %d\n\n", time.Now().Unix())
				flusher.Flush()
				lastHeartbeatSent = time.Now()
			}
		}
	}
}
