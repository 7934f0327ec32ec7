// Package workflow drives a single valuation request from photo to result.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raine/kasko-bot/internal/llm"
	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/rs/zerolog/log"
)

// State is the current mode of a controller.
type State int

const (
	Idle State = iota
	Analyzing
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Analyzing:
		return "analyzing"
	case Success:
		return "success"
	case Error:
		return "error"
	}
	return "unknown"
}

// Terminal reports whether the state waits for a reset.
func (s State) Terminal() bool {
	return s == Success || s == Error
}

var (
	// ErrBusy is returned when an analysis is already in flight.
	ErrBusy = errors.New("analysis already in progress")
	// ErrNotIdle is returned when submitting from Success or Error without a reset.
	ErrNotIdle = errors.New("controller must be reset before a new submission")
)

// UnknownErrorMessage is shown when a failure carries no user-facing text.
const UnknownErrorMessage = "Bilinmeyen bir hata oluştu."

// Image is a submitted registration photo.
type Image struct {
	Data     []byte
	MIMEType string
	// Ref identifies the image in the presentation layer, e.g. a Telegram file ID.
	Ref string
}

// Matcher looks up reference prices. *pricing.Catalog satisfies it.
type Matcher interface {
	Lookup(brand, model string, year int) vehicle.MatchResult
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State        State
	Record       *vehicle.Record
	ImageRef     string
	ErrorMessage string
}

// Observer is notified after every state transition.
type Observer func(from, to State, snap Snapshot)

// Controller owns the state of one user's request. All methods are safe for
// concurrent use.
type Controller struct {
	extractor llm.Extractor
	matcher   Matcher

	mu       sync.Mutex
	state    State
	record   *vehicle.Record
	imageRef string
	errMsg   string
	observer Observer
}

// NewController creates a controller in the Idle state.
func NewController(extractor llm.Extractor, matcher Matcher) *Controller {
	return &Controller{extractor: extractor, matcher: matcher}
}

// SetObserver installs a transition callback. The callback runs outside the
// controller lock.
func (c *Controller) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        c.state,
		ImageRef:     c.imageRef,
		ErrorMessage: c.errMsg,
	}
	if c.record != nil {
		rec := *c.record
		snap.Record = &rec
	}
	return snap
}

// transition must be called with c.mu held. It returns a function that
// notifies the observer and must be called after unlocking.
func (c *Controller) transitionLocked(to State) func() {
	from := c.state
	c.state = to
	observer := c.observer
	snap := c.snapshotLocked()
	return func() {
		if observer != nil {
			observer(from, to, snap)
		}
	}
}

// Submit runs the pipeline for one image. It blocks until the extraction
// finishes and returns the resolved record. If ctx is canceled while waiting
// for the extractor, the result is discarded and the controller returns to
// Idle. An expired deadline is a failure like any other and ends in Error.
func (c *Controller) Submit(ctx context.Context, img Image) (*vehicle.Record, error) {
	c.mu.Lock()
	switch c.state {
	case Analyzing:
		c.mu.Unlock()
		return nil, ErrBusy
	case Success, Error:
		c.mu.Unlock()
		return nil, ErrNotIdle
	}
	c.imageRef = img.Ref
	notify := c.transitionLocked(Analyzing)
	c.mu.Unlock()
	notify()

	start := time.Now()
	result, err := c.extractor.Extract(ctx, img.Data, img.MIMEType)

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		c.mu.Lock()
		c.clearLocked()
		notify := c.transitionLocked(Idle)
		c.mu.Unlock()
		notify()
		log.Info().Str("imageRef", img.Ref).Err(ctxErr).Msg("analysis canceled")
		return nil, ctxErr
	}

	if err == nil && (result == nil || result.Attributes == nil) {
		err = errors.New("extractor returned no attributes")
	}
	if err != nil {
		c.mu.Lock()
		c.record = nil
		c.errMsg = UserMessage(err)
		notify := c.transitionLocked(Error)
		c.mu.Unlock()
		notify()
		log.Warn().Err(err).Str("imageRef", img.Ref).Dur("took", time.Since(start)).Msg("analysis failed")
		return nil, err
	}

	attrs := *result.Attributes
	match := c.matcher.Lookup(attrs.Make, attrs.Model, attrs.Year)
	record := vehicle.Resolve(attrs, match)

	c.mu.Lock()
	rec := record
	c.record = &rec
	c.errMsg = ""
	notify = c.transitionLocked(Success)
	c.mu.Unlock()
	notify()

	log.Info().
		Str("make", record.Make).
		Str("model", record.Model).
		Int("year", record.Year).
		Bool("official", record.IsOfficialData).
		Bool("cached", result.Cached).
		Dur("took", time.Since(start)).
		Msg("analysis complete")

	return &record, nil
}

// Reset returns a terminal controller to Idle, discarding the held record,
// image reference and error message. Resetting an idle controller is a no-op.
func (c *Controller) Reset() error {
	c.mu.Lock()
	switch c.state {
	case Idle:
		c.mu.Unlock()
		return nil
	case Analyzing:
		c.mu.Unlock()
		return ErrBusy
	}
	c.clearLocked()
	notify := c.transitionLocked(Idle)
	c.mu.Unlock()
	notify()
	return nil
}

func (c *Controller) clearLocked() {
	c.record = nil
	c.imageRef = ""
	c.errMsg = ""
}

// UserMessage returns the text shown to the user for a failed submission.
func UserMessage(err error) string {
	var extractionErr *llm.ExtractionError
	if errors.As(err, &extractionErr) && extractionErr.Message != "" {
		return extractionErr.Message
	}
	return UnknownErrorMessage
}
