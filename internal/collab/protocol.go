package collab

import (
	"encoding/json"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/engine"
)

type Message struct {
	Type     string          `json:"type"`
	SceneID  string          `json:"sceneId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *CursorPos     `json:"cursor,omitempty"`
	Selection   []document.Ref `json:"selection,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
}

// CursorPos is in world coordinates.
type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Document sync
	TypeDocSync = "doc.sync"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	SceneID   string `json:"sceneId"`
	ServerSeq int64  `json:"serverSeq"`
}

type DocSyncPayload struct {
	Document  *document.Document `json:"document"`
	ServerSeq int64              `json:"serverSeq"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// --- Operation Types ---

const (
	OpPointCreate    = "point.create"
	OpPointAttach    = "point.attach"
	OpLineCreate     = "line.create"
	OpCircleCreate   = "circle.create"
	OpCircle3Create  = "circle3.create"
	OpIntersect      = "intersect"
	OpMidpoint       = "midpoint"
	OpSymmetric      = "symmetric"
	OpParallel       = "parallel"
	OpPerpendicular  = "perpendicular"
	OpAngleCreate    = "angle.create"
	OpPolygonCreate  = "polygon.create"
	OpObjectDelete   = "object.delete"
	OpDragBegin      = "drag.begin"
	OpDragMove       = "drag.move"
	OpDragEnd        = "drag.end"
	OpDragCancel     = "drag.cancel"
	OpDocumentLoad   = "doc.load"
	OpOrphansCollect = "orphans.collect"
)

// Operation is one edit submitted by a client. Which fields are read
// depends on Type.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	// Points are point ids in construction order: line endpoints, circle
	// center then radius point, angle vertex, polygon vertices.
	Points []string `json:"points,omitempty"`
	// Refs are object references: intersection parents, the carrier of a
	// new or attached point, a mirror, a drag target, deletions.
	Refs []document.Ref `json:"refs,omitempty"`
	// Line is the reference line of parallel, perpendicular and
	// line-midpoint operations.
	Line string `json:"line,omitempty"`
	// Pos is a world position for point.create and the pointer for drags.
	Pos  *CursorPos       `json:"pos,omitempty"`
	Legs *[2]document.Leg `json:"legs,omitempty"`

	Style document.Style `json:"style"`

	// For doc.load
	Document json.RawMessage `json:"document,omitempty"`
}

// OperationSubmitPayload is the payload for op.submit messages
type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// OperationAckPayload is the payload for op.ack messages
type OperationAckPayload struct {
	OperationID     string                `json:"operationId"`
	ServerSeq       int64                 `json:"serverSeq"`
	ServerTimestamp int64                 `json:"serverTimestamp"`
	Created         []string              `json:"created,omitempty"`
	Cleanup         *engine.CleanupReport `json:"cleanup,omitempty"`
}

// OperationNackPayload is the payload for op.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload is the payload for op.broadcast messages
type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}

func newMessage(typ string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, Payload: data}, nil
}
