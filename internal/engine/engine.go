package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/scene"
	"github.com/inamate/geoconstruct/internal/typeid"
)

var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidRef      = errors.New("invalid reference")
	ErrDegenerate      = errors.New("degenerate construction")
	ErrNoIntersection  = errors.New("objects do not intersect")
	ErrStickyKind      = errors.New("point kind cannot take generic parents")
	ErrTooManyParents  = errors.New("point already has two parents")
	ErrNotDraggable    = errors.New("object is not draggable")
	ErrDragInProgress  = errors.New("drag already in progress")
	ErrNoDrag          = errors.New("no drag in progress")
	ErrNoConstruction  = errors.New("no construction in progress")
	ErrInvalidDocument = errors.New("invalid document")
)

// Options tunes the interactive behaviour of the engine.
type Options struct {
	// SnapAngleDegrees is the angular window around a cardinal axis in
	// which axis snapping starts to pull a dragged point.
	SnapAngleDegrees float64
	// SnapBlendThreshold is the closeness (0..1 inside the window) at
	// which the pull reaches full strength.
	SnapBlendThreshold float64
	// MaxDepth bounds the propagation cascade triggered by one mutation.
	MaxDepth int
	// HitTolerance is the world-space pick radius used by HitTest.
	HitTolerance float64
}

func DefaultOptions() Options {
	return Options{
		SnapAngleDegrees:   5,
		SnapBlendThreshold: 0.9,
		MaxDepth:           64,
		HitTolerance:       8,
	}
}

// Checkpointer receives a snapshot of the construction after every
// committed edit. Undo storage lives behind it.
type Checkpointer interface {
	Checkpoint(doc *document.Document)
}

// CheckpointFunc adapts a function to Checkpointer.
type CheckpointFunc func(doc *document.Document)

func (f CheckpointFunc) Checkpoint(doc *document.Document) { f(doc) }

// Engine owns one construction and every piece of interactive state
// attached to it. It is not safe for concurrent use; callers that share an
// engine between goroutines serialise access themselves.
type Engine struct {
	scene   *scene.Store
	opts    Options
	log     *slog.Logger
	history Checkpointer
	newID   func(prefix string) string

	// Interaction state
	drag      *dragState
	snap      SnapIndicator
	pending   *pendingConstruction
	selection []document.Ref
	view      Viewport

	// Propagation guards. A line or point present here is being
	// recomputed further up the stack and is skipped on re-entry, which
	// is what breaks mutually dependent parallel/perpendicular chains.
	parallelInProgress      map[string]bool
	perpendicularInProgress map[string]bool
	pointsInProgress        map[string]bool
	cascade                 bool
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

func WithCheckpointer(c Checkpointer) Option {
	return func(e *Engine) { e.history = c }
}

// WithIDGenerator replaces the typeid generator, mostly for tests that
// want readable ids.
func WithIDGenerator(gen func(prefix string) string) Option {
	return func(e *Engine) { e.newID = gen }
}

// New creates an engine holding an empty construction.
func New(opts ...Option) *Engine {
	e := &Engine{
		scene:                   scene.New(),
		opts:                    DefaultOptions(),
		log:                     slog.New(discardHandler{}),
		newID:                   typeid.New,
		view:                    DefaultViewport(),
		parallelInProgress:      make(map[string]bool),
		perpendicularInProgress: make(map[string]bool),
		pointsInProgress:        make(map[string]bool),
		cascade:                 true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Scene exposes the store for read-only use by renderers.
func (e *Engine) Scene() *scene.Store {
	return e.scene
}

func (e *Engine) Options() Options {
	return e.opts
}

// --- Serialization ---

// Document returns a plain-data copy of the construction.
func (e *Engine) Document() *document.Document {
	return e.scene.Document()
}

// LoadDocument replaces the construction. The document is validated
// first; on failure the current construction is left untouched.
func (e *Engine) LoadDocument(doc *document.Document) error {
	candidate := scene.FromDocument(doc)
	for _, v := range Validate(candidate) {
		if v.Severity == SeverityError {
			return fmt.Errorf("load document: %w: %s", ErrInvalidDocument, v.Error())
		}
	}

	e.scene = candidate
	e.drag = nil
	e.snap = SnapIndicator{}
	e.pending = nil
	e.selection = nil
	e.RecomputeAll()

	e.log.Info("document loaded",
		"points", len(e.scene.Points),
		"lines", len(e.scene.Lines),
		"circles", len(e.scene.Circles))
	return nil
}

// LoadDocumentJSON parses and loads a JSON document.
func (e *Engine) LoadDocumentJSON(jsonData string) error {
	doc, err := document.Parse([]byte(jsonData))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	return e.LoadDocument(doc)
}

// LoadSampleDocument loads the built-in sample construction.
func (e *Engine) LoadSampleDocument() {
	if err := e.LoadDocument(document.NewSampleDocument()); err != nil {
		e.log.Error("load sample document", "error", err)
	}
}

// DocumentJSON returns the construction as JSON.
func (e *Engine) DocumentJSON() string {
	data, err := json.Marshal(e.Document())
	if err != nil {
		e.log.Error("marshal document", "error", err)
		return "{}"
	}
	return string(data)
}

// --- Selection ---

func (e *Engine) SetSelection(refs []document.Ref) {
	e.selection = refs
}

func (e *Engine) Selection() []document.Ref {
	return e.selection
}

func (e *Engine) checkpoint() {
	if e.history == nil {
		return
	}
	e.history.Checkpoint(e.Document())
}

// discardHandler drops every record so an engine built without a logger
// stays silent.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
