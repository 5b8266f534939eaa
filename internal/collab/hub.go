package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/engine"
)

// DocLoader fetches the stored construction of a scene. A nil document
// with a nil error starts the scene empty.
type DocLoader func(ctx context.Context, sceneID string) (*document.Document, error)

// DocSaver persists the construction of a scene.
type DocSaver func(ctx context.Context, sceneID string, doc *document.Document) error

const saveTimeout = 10 * time.Second

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sceneID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}

	loader       DocLoader
	saver        DocSaver
	engineOpts   engine.Options
	saveInterval time.Duration
}

func NewHub(loader DocLoader, saver DocSaver, opts engine.Options, saveInterval time.Duration) *Hub {
	return &Hub{
		rooms:        make(map[string]*Room),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		loader:       loader,
		saver:        saver,
		engineOpts:   opts,
		saveInterval: saveInterval,
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	var tick <-chan time.Time
	if h.saveInterval > 0 {
		ticker := time.NewTicker(h.saveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-tick:
			h.saveDirty()
		case <-h.stop:
			h.saveDirty()
			return
		}
	}
}

// Stop ends Run after a final save of every changed scene.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) room(sceneID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[sceneID]
	return room, ok
}

func (h *Hub) openRoom(sceneID string) (*Room, error) {
	if room, ok := h.room(sceneID); ok {
		return room, nil
	}

	eng := engine.New(engine.WithOptions(h.engineOpts), engine.WithLogger(slog.Default().With("scene", sceneID)))
	if h.loader != nil {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		doc, err := h.loader(ctx, sceneID)
		cancel()
		if err != nil {
			return nil, err
		}
		if doc != nil {
			if err := eng.LoadDocument(doc); err != nil {
				return nil, err
			}
		}
	}

	room := NewRoom(sceneID, eng)
	h.mu.Lock()
	h.rooms[sceneID] = room
	h.mu.Unlock()
	return room, nil
}

func (h *Hub) addClient(client *Client) {
	room, err := h.openRoom(client.SceneID)
	if err != nil {
		slog.Error("open scene", "error", err, "scene", client.SceneID)
		if msg, merr := newMessage(TypeError, ErrorPayload{Message: "scene unavailable"}); merr == nil {
			client.Send(msg)
		}
		client.Close()
		return
	}

	h.mu.Lock()
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	doc, seq := room.Snapshot()
	if msg, err := newMessage(TypeWelcome, WelcomePayload{
		ClientID:  client.ClientID,
		SceneID:   client.SceneID,
		ServerSeq: seq,
	}); err == nil {
		client.Send(msg)
	}
	if msg, err := newMessage(TypeDocSync, DocSyncPayload{Document: doc, ServerSeq: seq}); err == nil {
		client.Send(msg)
	}

	// Send current presence state to new client
	stateMsg := room.presence.StateMessage()
	if stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg := &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}
	h.broadcastToRoom(client.SceneID, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := room.clients[client.ClientID]; !member {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.Close()
	room.presence.Remove(client.UserID)

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.SceneID)
	}
	h.mu.Unlock()

	if room.ReleaseDrag(client.ClientID) && !empty {
		h.syncRoom(room)
	}
	if empty {
		h.saveRoom(room)
	}

	// Broadcast leave to remaining clients
	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		UserID: client.UserID,
	})
	leaveMsg := &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}
	h.broadcastToRoom(client.SceneID, leaveMsg, "")

	slog.Info("client left", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	room, ok := h.room(sender.SceneID)
	if !ok {
		return
	}

	room.presence.Update(sender.UserID, &presence)

	// Broadcast to other clients in room
	outPayload, _ := json.Marshal(presence)
	outMsg := &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}
	h.broadcastToRoom(sender.SceneID, outMsg, sender.ClientID)
}

func (h *Hub) handleOpSubmit(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		slog.Warn("invalid op payload", "error", err, "user", sender.UserID)
		h.nack(sender, "", "invalid payload")
		return
	}
	op := submit.Operation

	room, ok := h.room(sender.SceneID)
	if !ok {
		h.nack(sender, op.ID, "scene not open")
		return
	}

	res, err := room.Apply(sender.ClientID, &op)
	if err != nil {
		slog.Debug("operation rejected", "op", op.Type, "id", op.ID, "error", err, "user", sender.UserID)
		h.nack(sender, op.ID, err.Error())
		return
	}

	ack, err := newMessage(TypeOpAck, OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       res.ServerSeq,
		ServerTimestamp: time.Now().UnixMilli(),
		Created:         res.Created,
		Cleanup:         res.Cleanup,
	})
	if err == nil {
		ack.Seq = res.ServerSeq
		sender.Send(ack)
	}

	if bc, err := newMessage(TypeOpBroadcast, OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: res.ServerSeq,
	}); err == nil {
		bc.UserID = sender.UserID
		bc.Seq = res.ServerSeq
		h.broadcastToRoom(sender.SceneID, bc, sender.ClientID)
	}
	h.syncRoom(room)

	if res.Cleanup != nil && len(room.presence.DropRefs(res.Cleanup.Removed)) > 0 {
		if stateMsg := room.presence.StateMessage(); stateMsg != nil {
			h.broadcastToRoom(sender.SceneID, stateMsg, "")
		}
	}
}

func (h *Hub) nack(client *Client, opID, reason string) {
	msg, err := newMessage(TypeOpNack, OperationNackPayload{OperationID: opID, Reason: reason})
	if err != nil {
		slog.Error("marshal nack", "error", err)
		return
	}
	client.Send(msg)
}

// syncRoom sends the whole construction to every client of the room.
func (h *Hub) syncRoom(room *Room) {
	doc, seq := room.Snapshot()
	msg, err := newMessage(TypeDocSync, DocSyncPayload{Document: doc, ServerSeq: seq})
	if err != nil {
		slog.Error("marshal doc sync", "error", err)
		return
	}
	msg.Seq = seq
	h.broadcastToRoom(room.sceneID, msg, "")
}

// resync sends the current construction to a client that had messages
// dropped. It runs on the client's write pump.
func (h *Hub) resync(client *Client) {
	room, ok := h.room(client.SceneID)
	if !ok {
		return
	}
	doc, seq := room.Snapshot()
	msg, err := newMessage(TypeDocSync, DocSyncPayload{Document: doc, ServerSeq: seq})
	if err != nil {
		slog.Error("marshal doc sync", "error", err)
		return
	}
	msg.Seq = seq
	client.Send(msg)
	slog.Debug("client resynced", "user", client.UserID, "scene", client.SceneID, "seq", seq)
}

// broadcastToRoom sends msg to every member of the scene except
// excludeClientID. Members that leave meanwhile are closed and ignore it.
func (h *Hub) broadcastToRoom(sceneID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[sceneID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func (h *Hub) saveDirty() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.saveRoom(r)
	}
}

func (h *Hub) saveRoom(room *Room) {
	if h.saver == nil {
		return
	}
	doc, dirty := room.TakeDirty()
	if !dirty {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := h.saver(ctx, room.sceneID, doc); err != nil {
		slog.Error("save scene", "error", err, "scene", room.sceneID)
		room.MarkDirty()
		return
	}
	slog.Debug("scene saved", "scene", room.sceneID, "points", len(doc.Points))
}
