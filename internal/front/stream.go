package front

import (
	"context"
	"time"

	apperrors "github.com/codivex/codivex/internal/errors"
	"github.com/codivex/codivex/internal/search"
)

// StreamEventKind discriminates the three event shapes of the §6.2
// streaming variant.
type StreamEventKind string

const (
	StreamEventResult StreamEventKind = "result"
	StreamEventDone   StreamEventKind = "done"
	StreamEventError  StreamEventKind = "error"
)

// ResultInterval paces result events: one item emitted roughly every
// ResultInterval, so a client rendering a live results list sees items
// arrive progressively rather than all at once.
const ResultInterval = 120 * time.Millisecond

// StreamEvent is one frame of the streaming search response. Exactly one
// of Item or Status is populated, per Kind.
type StreamEvent struct {
	Kind   StreamEventKind
	Item   *search.SearchResultItem `json:"item,omitempty"`
	Status *StreamStatus            `json:"status,omitempty"`
}

// StreamStatus is the payload of a done or error event.
type StreamStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SearchCodeStream runs the same validation, scope resolution, and cache
// path as SearchCode, then emits one result event per item at
// ResultInterval, followed by a single done event — or, on failure, a
// single error event in place of any result events. The stream is
// one-shot: the returned channel is closed after the done or error event,
// and emission stops early if ctx is canceled.
func (f *RequestFront) SearchCodeStream(ctx context.Context, req SearchCodeRequest) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		resp, err := f.SearchCode(ctx, req)
		if err != nil {
			send(ctx, events, StreamEvent{Kind: StreamEventError, Status: errorStatus(err)})
			return
		}

		ticker := time.NewTicker(ResultInterval)
		defer ticker.Stop()

		for i := range resp.Items {
			item := resp.Items[i]
			if i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			if !send(ctx, events, StreamEvent{Kind: StreamEventResult, Item: &item}) {
				return
			}
		}

		send(ctx, events, StreamEvent{Kind: StreamEventDone, Status: &StreamStatus{Status: "complete"}})
	}()

	return events
}

// send delivers an event unless ctx is canceled first, returning false if
// the event was dropped.
func send(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// errorStatus maps a RequestFront error to the streaming error payload:
// a status name derived from the JSON-RPC code ("invalid_params",
// "no_results", "timeout" or "error") as Status, message as Message.
func errorStatus(err error) *StreamStatus {
	rpcErr := ToRPCError(err)
	return &StreamStatus{Status: statusCode(rpcErr.Code), Message: rpcErr.Message}
}

func statusCode(code int) string {
	switch code {
	case apperrors.KindInvalidParams.JSONRPCCode():
		return "invalid_params"
	case apperrors.KindIndexUnavailable.JSONRPCCode():
		return "no_results"
	case apperrors.KindTimeout.JSONRPCCode():
		return "timeout"
	default:
		return "error"
	}
}
