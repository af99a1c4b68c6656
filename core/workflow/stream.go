package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-workflow/core/events"
	"github.com/koscakluka/ema-workflow/core/sse"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Stream struct {
	client  *Client
	request StartRequest
}

// Events sends the start request and yields decoded events as frames
// arrive. Transport failures are yielded as errors and end the sequence. An
// idle timeout is reported as a synthetic [events.Error] instead.
//
// The response body is released on every exit path, including when the
// caller stops ranging early or ctx is cancelled.
func (s *Stream) Events(ctx context.Context) iter.Seq2[events.Event, error] {
	return func(yield func(events.Event, error) bool) {
		ctx, span := tracer.Start(ctx, "stream workflow")
		defer span.End()
		span.SetAttributes(
			attribute.String("conversation.id", s.request.ConversationID),
			attribute.String("stream.framing", s.client.framing.String()),
		)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		requestBodyBytes, err := json.Marshal(s.request)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+streamPath, bytes.NewReader(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		span.SetAttributes(attribute.String("request.url", req.URL.String()))

		var timedOut atomic.Bool
		var watchdog *time.Timer
		if s.client.idleTimeout > 0 {
			watchdog = time.AfterFunc(s.client.idleTimeout, func() {
				timedOut.Store(true)
				cancel()
			})
			defer watchdog.Stop()
		}
		idleTimeout := func() bool {
			if !timedOut.Load() {
				return false
			}
			logger.WarnContext(ctx, "workflow stream idle, giving up",
				"conversation.id", s.request.ConversationID,
				"timeout", s.client.idleTimeout)
			span.RecordError(ErrIdleTimeout)
			yield(events.NewError(ErrIdleTimeout.Error()), nil)
			return true
		}

		span.AddEvent("request started")
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			if idleTimeout() {
				return
			}
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			err := newStatusError(resp)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		var body io.Reader = resp.Body
		if watchdog != nil {
			// From here on only time spent waiting in Read counts as idle.
			watchdog.Stop()
			body = &idleReader{r: resp.Body, watchdog: watchdog, timeout: s.client.idleTimeout}
		}

		count := 0
		defer func() {
			span.SetAttributes(attribute.Int("response.events", count))
		}()
		// The stream reads with the cancellable context so the watchdog
		// can interrupt it.
		for frame, err := range sse.Frames(ctx, body, sse.WithFraming(s.client.framing)) {
			if err != nil {
				if idleTimeout() {
					return
				}
				err = fmt.Errorf("error reading streamed response: %w", err)
				span.RecordError(err)
				yield(nil, err)
				return
			}

			event := events.Decode(frame)
			count++
			kind := metric.WithAttributes(attribute.String("event.kind", string(event.Kind())))
			eventsDecoded.Add(ctx, 1, kind)
			if unknown, ok := event.(events.Unknown); ok {
				unknownEvents.Add(ctx, 1)
				logger.DebugContext(ctx, "undecodable workflow frame",
					"event.tag", unknown.Tag,
					"event.raw", unknown.Raw)
			}

			if !yield(event, nil) {
				return
			}
		}
	}
}

// idleReader arms the watchdog only while a Read is blocked, so time the
// consumer spends handling events is never taken for backend silence.
type idleReader struct {
	r        io.Reader
	watchdog *time.Timer
	timeout  time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	r.watchdog.Reset(r.timeout)
	n, err := r.r.Read(p)
	r.watchdog.Stop()
	return n, err
}
