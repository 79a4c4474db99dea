// ABOUTME: Tests for the voice bridge: finality, translation, single-flight.
// ABOUTME: Uses a scripted translator fake; no real capture engine involved.

package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstalk-chat/crosstalk/internal/api"
)

// fakeTranslator scripts translation outcomes and can block to simulate
// an in-flight request.
type fakeTranslator struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	calls   int
	lastSrc string
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, sourceLanguage string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastSrc = sourceLanguage
	block := f.block
	err := f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return "", err
	}
	return "[translated] " + text, nil
}

// collector is a Sink that records commits in order.
type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) sink(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func (c *collector) committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.texts...)
}

func autoOpts() Options {
	return Options{AutoTranslate: true, BaseLanguage: "english", TargetLanguage: "hindi"}
}

func TestBridge_InterimSegmentsDiscarded(t *testing.T) {
	out := &collector{}
	b := NewBridge(nil, out.sink, Options{}, nil)

	require.NoError(t, b.HandleSegment(context.Background(), Segment{Text: "hel", Final: false}))
	require.NoError(t, b.HandleSegment(context.Background(), Segment{Text: "   ", Final: true}))
	require.NoError(t, b.HandleSegment(context.Background(), Segment{Text: "hello", Final: true}))

	assert.Equal(t, []string{"hello"}, out.committed())
}

func TestBridge_AutoTranslateCommitsTranslation(t *testing.T) {
	tr := &fakeTranslator{}
	out := &collector{}
	b := NewBridge(tr, out.sink, autoOpts(), nil)

	require.NoError(t, b.HandleSegment(context.Background(), Segment{Text: "hello", Final: true}))

	assert.Equal(t, []string{"[translated] hello"}, out.committed())
	assert.Equal(t, "english", tr.lastSrc, "base language used when the segment has none")
}

func TestBridge_TranslationFailureFallsBack(t *testing.T) {
	tr := &fakeTranslator{err: &api.TranslationError{StatusCode: 502, Message: "engine down"}}
	out := &collector{}
	b := NewBridge(tr, out.sink, autoOpts(), nil)

	require.NoError(t, b.HandleSegment(context.Background(), Segment{Text: "hello", Final: true}))

	assert.Equal(t, []string{"hello"}, out.committed(), "voice input must not be dropped")
}

func TestBridge_SameLanguageSkipsTranslation(t *testing.T) {
	tr := &fakeTranslator{}
	out := &collector{}
	b := NewBridge(tr, out.sink, autoOpts(), nil)

	require.NoError(t, b.HandleSegment(context.Background(), Segment{Text: "नमस्ते", Final: true, Language: "hindi"}))

	assert.Equal(t, []string{"नमस्ते"}, out.committed())
	assert.Zero(t, tr.calls)
}

func TestBridge_SingleFlight(t *testing.T) {
	tr := &fakeTranslator{block: make(chan struct{})}
	out := &collector{}
	b := NewBridge(tr, out.sink, autoOpts(), nil)

	done := make(chan error, 1)
	go func() {
		done <- b.HandleSegment(context.Background(), Segment{Text: "first", Final: true})
	}()

	require.Eventually(t, b.Busy, time.Second, time.Millisecond)

	// A second segment while the first is pending is rejected, never queued.
	err := b.HandleSegment(context.Background(), Segment{Text: "second", Final: true})
	assert.ErrorIs(t, err, ErrBusy)

	close(tr.block)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"[translated] first"}, out.committed())
	assert.False(t, b.Busy())

	// The bridge accepts segments again once the flight completes.
	require.NoError(t, b.HandleSegment(context.Background(), Segment{Text: "third", Final: true}))
	assert.Equal(t, []string{"[translated] first", "[translated] third"}, out.committed())
}
