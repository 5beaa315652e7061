package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/d1childress/ccmanager/internal/observability"
)

// StreamStatus is the lifecycle state of a Stream
type StreamStatus int

const (
	StreamActive StreamStatus = iota
	StreamCompleted
	StreamAborted
)

func (s StreamStatus) String() string {
	switch s {
	case StreamActive:
		return "active"
	case StreamCompleted:
		return "completed"
	default:
		return "aborted"
	}
}

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	reasonClosed       = "closed by consumer"
	reasonNoSentinel   = "stream ended before [DONE]"
	maxStreamLineBytes = 1024 * 1024
)

// event is one parsed server-sent-event payload
type event struct {
	text    string
	hasText bool
	done    bool
	err     string
}

// extractor decodes a provider-specific JSON payload. A decode error means
// the line is skipped.
type extractor func(payload []byte) (event, error)

// parseEventLine interprets one line of an event stream
func parseEventLine(line string, extract extractor) (event, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return event{}, false
	}

	payload := strings.TrimPrefix(line, dataPrefix)
	if strings.TrimSpace(payload) == doneSentinel {
		return event{done: true}, true
	}

	ev, err := extract([]byte(payload))
	if err != nil {
		return event{}, false
	}
	return ev, true
}

// Stream is a finite, single-consumer sequence of text fragments produced
// on a background goroutine. It is not restartable. Consumers must either
// range over Fragments to the end or call Close.
type Stream struct {
	fragments chan string
	done      chan struct{}
	cancel    context.CancelFunc
	claimed   atomic.Bool
	closing   atomic.Bool

	mu     sync.Mutex
	status StreamStatus
	reason string
	text   strings.Builder
}

// opener issues the streaming request
type opener func(ctx context.Context) (*http.Response, error)

func startStream(ctx context.Context, open opener, extract extractor, logger *observability.Logger) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		fragments: make(chan string),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go s.run(ctx, open, extract, logger)
	return s
}

// abortedStream returns a stream that is already finished
func abortedStream(reason string) *Stream {
	s := &Stream{
		fragments: make(chan string),
		done:      make(chan struct{}),
		cancel:    func() {},
		status:    StreamAborted,
		reason:    reason,
	}
	close(s.fragments)
	close(s.done)
	return s
}

func (s *Stream) run(ctx context.Context, open opener, extract extractor, logger *observability.Logger) {
	defer close(s.done)
	defer close(s.fragments)
	defer s.cancel()

	resp, err := open(ctx)
	if err != nil {
		s.abort(ctx, err.Error())
		logger.WithError(err).Warn("stream request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		s.abort(ctx, fmt.Sprintf("API error: HTTP %d", resp.StatusCode))
		logger.WithField("status", resp.StatusCode).Warn("stream returned non-OK status")
		return
	}

	reader := bufio.NewReaderSize(resp.Body, 64*1024)
	for {
		line, oversized, err := readEventLine(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.abort(ctx, err.Error())
			return
		}
		if oversized {
			logger.WithField("limit_bytes", maxStreamLineBytes).Warn("skipping oversized event line")
			continue
		}

		ev, ok := parseEventLine(line, extract)
		if !ok {
			continue
		}
		if ev.done {
			s.finish(StreamCompleted, "")
			return
		}
		if ev.err != "" {
			s.abort(ctx, ev.err)
			return
		}
		if !ev.hasText || ev.text == "" {
			continue
		}

		select {
		case s.fragments <- ev.text:
		case <-ctx.Done():
			s.abort(ctx, ctx.Err().Error())
			return
		}
	}

	s.abort(ctx, reasonNoSentinel)
}

func (s *Stream) abort(ctx context.Context, reason string) {
	if s.closing.Load() {
		reason = reasonClosed
	} else if ctx.Err() != nil {
		reason = ctx.Err().Error()
	}
	s.finish(StreamAborted, reason)
}

func (s *Stream) finish(status StreamStatus, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StreamActive {
		s.status = status
		s.reason = reason
	}
}

// readEventLine reads one line without its terminator. A line longer than
// maxStreamLineBytes is consumed and reported as oversized.
func readEventLine(r *bufio.Reader) (string, bool, error) {
	var buf []byte
	oversized := false
	for {
		chunk, more, err := r.ReadLine()
		if err != nil {
			return "", false, err
		}
		if !oversized {
			if len(buf)+len(chunk) > maxStreamLineBytes {
				oversized, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !more {
			return string(buf), oversized, nil
		}
	}
}

// Fragments returns the sequence of text fragments. Only the first call
// yields anything. Breaking out of the loop closes the connection.
func (s *Stream) Fragments() iter.Seq[string] {
	if !s.claimed.CompareAndSwap(false, true) {
		return func(func(string) bool) {}
	}
	return func(yield func(string) bool) {
		for f := range s.fragments {
			s.mu.Lock()
			s.text.WriteString(f)
			s.mu.Unlock()
			if !yield(f) {
				s.Close()
				return
			}
		}
	}
}

// Close releases the connection and waits for the producer to stop
func (s *Stream) Close() {
	s.closing.Store(true)
	s.cancel()
	for range s.fragments {
	}
	<-s.done
}

// Wait blocks until the stream has finished
func (s *Stream) Wait() {
	<-s.done
}

// Status returns the terminal status and, when aborted, the reason
func (s *Stream) Status() (StreamStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.reason
}

// Text returns every fragment yielded to the consumer so far, concatenated
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}
