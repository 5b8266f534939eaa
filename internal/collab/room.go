package collab

import (
	"errors"
	"fmt"
	"sync"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/engine"
	"github.com/inamate/geoconstruct/internal/geom"
	"github.com/inamate/geoconstruct/internal/typeid"
)

var (
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrBadOperation     = errors.New("malformed operation")
	ErrDragOwned        = errors.New("another client is dragging")
)

// OperationResult is what a successfully applied operation produced.
type OperationResult struct {
	ServerSeq int64
	Created   []string
	Cleanup   *engine.CleanupReport
}

// Room is one live scene. The engine is owned by the room and only
// touched under mu; clients and presence are guarded by the hub.
type Room struct {
	sceneID  string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager

	mu        sync.Mutex
	engine    *engine.Engine
	serverSeq int64
	dirty     bool
	dragOwner string
}

func NewRoom(sceneID string, eng *engine.Engine) *Room {
	return &Room{
		sceneID:  sceneID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		engine:   eng,
	}
}

func (r *Room) SceneID() string { return r.sceneID }

// Snapshot returns a copy of the construction and the sequence number it
// reflects.
func (r *Room) Snapshot() (*document.Document, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Document(), r.serverSeq
}

// TakeDirty returns the construction if it changed since the last call.
func (r *Room) TakeDirty() (*document.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil, false
	}
	r.dirty = false
	return r.engine.Document(), true
}

// MarkDirty flags the room for the next save, used when a save fails.
func (r *Room) MarkDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

// ReleaseDrag cancels the drag held by clientID, if any. It reports
// whether the construction changed.
func (r *Room) ReleaseDrag(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dragOwner != clientID || !r.engine.Dragging() {
		return false
	}
	r.dragOwner = ""
	if err := r.engine.CancelDrag(); err != nil {
		return false
	}
	r.serverSeq++
	return true
}

// Apply runs one client operation against the engine.
func (r *Room) Apply(clientID string, op *Operation) (*OperationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}
	res, err := r.apply(clientID, op)
	if !r.engine.Dragging() {
		r.dragOwner = ""
	}
	if err != nil {
		return nil, err
	}
	r.serverSeq++
	if op.Type != OpDragBegin {
		r.dirty = true
	}
	res.ServerSeq = r.serverSeq
	return res, nil
}

func (r *Room) apply(clientID string, op *Operation) (*OperationResult, error) {
	e := r.engine
	res := &OperationResult{}

	created := func(id string, err error) (*OperationResult, error) {
		if err != nil {
			return nil, err
		}
		res.Created = []string{id}
		return res, nil
	}

	switch op.Type {
	case OpPointCreate:
		pos, err := op.position()
		if err != nil {
			return nil, err
		}
		if len(op.Refs) > 0 {
			return created(e.AddPointOn(op.Refs[0], pos, op.Style))
		}
		return created(e.AddPoint(pos, op.Style))

	case OpPointAttach:
		if len(op.Points) != 1 || len(op.Refs) != 1 {
			return nil, fmt.Errorf("%s: %w: want one point and one ref", op.Type, ErrBadOperation)
		}
		return res, e.AttachPoint(op.Points[0], op.Refs[0])

	case OpLineCreate, OpCircleCreate:
		if len(op.Points) != 2 {
			return nil, fmt.Errorf("%s: %w: want two points", op.Type, ErrBadOperation)
		}
		if op.Type == OpLineCreate {
			return created(e.AddLine(op.Points[0], op.Points[1], op.Style))
		}
		return created(e.AddCircle(op.Points[0], op.Points[1], op.Style))

	case OpCircle3Create:
		if len(op.Points) != 3 {
			return nil, fmt.Errorf("%s: %w: want three points", op.Type, ErrBadOperation)
		}
		return created(e.AddCircleThreePoints(op.Points[0], op.Points[1], op.Points[2], op.Style))

	case OpIntersect:
		if len(op.Refs) != 2 {
			return nil, fmt.Errorf("%s: %w: want two refs", op.Type, ErrBadOperation)
		}
		ids, err := e.Intersect(op.Refs[0], op.Refs[1], op.Style)
		if err != nil {
			return nil, err
		}
		res.Created = ids
		return res, nil

	case OpMidpoint:
		switch {
		case op.Line != "":
			return created(e.MidpointOfLine(op.Line, op.Style))
		case len(op.Points) == 2:
			return created(e.Midpoint(op.Points[0], op.Points[1], op.Style))
		}
		return nil, fmt.Errorf("%s: %w: want a line or two points", op.Type, ErrBadOperation)

	case OpSymmetric:
		if len(op.Points) != 1 || len(op.Refs) != 1 {
			return nil, fmt.Errorf("%s: %w: want a source point and a mirror", op.Type, ErrBadOperation)
		}
		return created(e.Symmetric(op.Points[0], op.Refs[0], op.Style))

	case OpParallel, OpPerpendicular:
		if len(op.Points) != 1 || op.Line == "" {
			return nil, fmt.Errorf("%s: %w: want a point and a line", op.Type, ErrBadOperation)
		}
		if op.Type == OpParallel {
			return created(e.ParallelLine(op.Points[0], op.Line, op.Style))
		}
		return created(e.PerpendicularLine(op.Points[0], op.Line, op.Style))

	case OpAngleCreate:
		if len(op.Points) != 1 || op.Legs == nil {
			return nil, fmt.Errorf("%s: %w: want a vertex and two legs", op.Type, ErrBadOperation)
		}
		return created(e.AddAngle(op.Points[0], *op.Legs, op.Style))

	case OpPolygonCreate:
		return created(e.AddPolygon(op.Points, op.Style))

	case OpObjectDelete:
		if len(op.Refs) == 0 {
			return nil, fmt.Errorf("%s: %w: nothing to delete", op.Type, ErrBadOperation)
		}
		report, err := e.Delete(op.Refs...)
		if err != nil {
			return nil, err
		}
		res.Cleanup = &report
		return res, nil

	case OpOrphansCollect:
		report := e.CollectOrphans()
		res.Cleanup = &report
		return res, nil

	case OpDragBegin:
		if len(op.Refs) != 1 {
			return nil, fmt.Errorf("%s: %w: want one target", op.Type, ErrBadOperation)
		}
		pos, err := op.position()
		if err != nil {
			return nil, err
		}
		if e.Dragging() && r.dragOwner != clientID {
			return nil, ErrDragOwned
		}
		if err := e.BeginDrag(op.Refs[0], pos); err != nil {
			return nil, err
		}
		r.dragOwner = clientID
		return res, nil

	case OpDragMove:
		if err := r.ownsDrag(clientID); err != nil {
			return nil, err
		}
		pos, err := op.position()
		if err != nil {
			return nil, err
		}
		return res, e.DragTo(pos)

	case OpDragEnd:
		if err := r.ownsDrag(clientID); err != nil {
			return nil, err
		}
		return res, e.EndDrag()

	case OpDragCancel:
		if err := r.ownsDrag(clientID); err != nil {
			return nil, err
		}
		return res, e.CancelDrag()

	case OpDocumentLoad:
		if len(op.Document) == 0 {
			return nil, fmt.Errorf("%s: %w: missing document", op.Type, ErrBadOperation)
		}
		return res, e.LoadDocumentJSON(string(op.Document))

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op.Type)
	}
}

func (r *Room) ownsDrag(clientID string) error {
	if !r.engine.Dragging() {
		return engine.ErrNoDrag
	}
	if r.dragOwner != clientID {
		return ErrDragOwned
	}
	return nil
}

func (op *Operation) position() (geom.Vec, error) {
	if op.Pos == nil {
		return geom.Vec{}, fmt.Errorf("%s: %w: missing position", op.Type, ErrBadOperation)
	}
	return geom.V(op.Pos.X, op.Pos.Y), nil
}
