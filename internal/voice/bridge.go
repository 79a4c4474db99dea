// ABOUTME: Voice capture bridge: final speech segments into the compose buffer.
// ABOUTME: Optional pre-translation with source-text fallback, single-flight.

package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/crosstalk-chat/crosstalk/internal/api"
)

// Segment is one recognition result from the capture engine. Final
// marks the segment as committed by the recognizer; non-final interim
// results are display-only and never reach the compose buffer.
type Segment struct {
	Text     string
	Final    bool
	Language string
}

// Recognizer is the external speech capture engine. Implementations
// push segments to the bridge as they are recognized.
type Recognizer interface {
	// Start begins a capture session delivering segments to the callback
	// until the context is cancelled or Stop is called.
	Start(ctx context.Context, onSegment func(Segment)) error
	Stop()
}

// Sink receives finalized (and possibly translated) text, typically the
// compose buffer of a session.
type Sink func(text string)

// ErrBusy is returned when a segment arrives while a translation for an
// earlier segment is still in flight.
var ErrBusy = errors.New("translation in flight, segment dropped")

// Options configures a bridge.
type Options struct {
	// AutoTranslate pre-translates each final segment into TargetLanguage
	// before committing it.
	AutoTranslate bool
	// BaseLanguage is the recognizer's language; segments already in the
	// target language skip translation.
	BaseLanguage string
	// TargetLanguage is the translation target in auto-translate mode.
	TargetLanguage string
}

// Bridge converts recognizer output into compose-buffer commits.
type Bridge struct {
	translator api.Translator
	sink       Sink
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewBridge creates a bridge committing to the given sink. The
// translator may be nil when auto-translate is off.
func NewBridge(translator api.Translator, sink Sink, opts Options, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		translator: translator,
		sink:       sink,
		opts:       opts,
		logger:     logger.With("component", "voice"),
	}
}

// HandleSegment processes one recognition result. Interim segments and
// empty text are ignored. In auto-translate mode the segment is
// translated before commit; while that translation is pending, further
// segments are rejected with ErrBusy so fragments cannot interleave.
func (b *Bridge) HandleSegment(ctx context.Context, seg Segment) error {
	if !seg.Final {
		return nil
	}
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return nil
	}

	if !b.translateNeeded(seg) {
		b.sink(text)
		return nil
	}

	b.mu.Lock()
	if b.inFlight {
		b.mu.Unlock()
		b.logger.Debug("segment dropped, translation pending", "text_len", len(text))
		return ErrBusy
	}
	b.inFlight = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight = false
		b.mu.Unlock()
	}()

	translated, err := b.translator.Translate(ctx, text, b.opts.TargetLanguage, b.sourceLanguage(seg))
	if err != nil {
		// Voice input is expensive to reproduce; commit the original
		// rather than dropping it.
		b.logger.Warn("translation failed, committing original text", "error", err)
		b.sink(text)
		return nil
	}
	b.sink(translated)
	return nil
}

// Busy reports whether a translation is currently in flight.
func (b *Bridge) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}

// Run starts the recognizer and feeds its segments through
// HandleSegment until the context ends or the recognizer stops.
func (b *Bridge) Run(ctx context.Context, rec Recognizer) error {
	return rec.Start(ctx, func(seg Segment) {
		if err := b.HandleSegment(ctx, seg); err != nil && !errors.Is(err, ErrBusy) {
			b.logger.Warn("segment handling failed", "error", err)
		}
	})
}

// translateNeeded reports whether this segment must pass through the
// translation service before commit.
func (b *Bridge) translateNeeded(seg Segment) bool {
	if !b.opts.AutoTranslate || b.translator == nil || b.opts.TargetLanguage == "" {
		return false
	}
	lang := seg.Language
	if lang == "" {
		lang = b.opts.BaseLanguage
	}
	return lang != b.opts.TargetLanguage
}

// sourceLanguage resolves the segment's language for the translation
// request; "" lets the service auto-detect.
func (b *Bridge) sourceLanguage(seg Segment) string {
	if seg.Language != "" {
		return seg.Language
	}
	return b.opts.BaseLanguage
}
