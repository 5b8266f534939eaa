package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/engine"
)

type memStore struct {
	mu    sync.Mutex
	docs  map[string]*document.Document
	saves int
}

func (m *memStore) load(_ context.Context, sceneID string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[sceneID]; ok {
		return d.Clone(), nil
	}
	return nil, nil
}

func (m *memStore) save(_ context.Context, sceneID string, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[sceneID] = doc
	m.saves++
	return nil
}

func newTestHub() (*Hub, *memStore) {
	store := &memStore{docs: map[string]*document.Document{"scene_1": document.NewSampleDocument()}}
	return NewHub(store.load, store.save, engine.DefaultOptions(), 0), store
}

func newTestClient(h *Hub, id string) *Client {
	return NewClient(h, nil, "user_"+id, "User "+id, "scene_1", id)
}

// drain returns every message queued for c without blocking.
func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data := <-c.send:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func find(t *testing.T, msgs []Message, typ string, v any) {
	t.Helper()
	for _, m := range msgs {
		if m.Type == typ {
			if err := json.Unmarshal(m.Payload, v); err != nil {
				t.Fatalf("decode %s: %v", typ, err)
			}
			return
		}
	}
	t.Fatalf("no %s message in %v", typ, types(msgs))
}

func submit(t *testing.T, h *Hub, c *Client, op Operation) {
	t.Helper()
	payload, err := json.Marshal(OperationSubmitPayload{Operation: op})
	if err != nil {
		t.Fatal(err)
	}
	h.handleMessage(c, &Message{Type: TypeOpSubmit, Payload: payload})
}

func TestHubJoinSendsWelcomeAndDocument(t *testing.T) {
	h, _ := newTestHub()
	c := newTestClient(h, "c1")
	h.addClient(c)

	msgs := drain(t, c)
	if len(msgs) != 3 || msgs[0].Type != TypeWelcome || msgs[1].Type != TypeDocSync || msgs[2].Type != TypePresenceState {
		t.Fatalf("messages = %v", types(msgs))
	}
	var welcome WelcomePayload
	find(t, msgs, TypeWelcome, &welcome)
	if welcome.ClientID != "c1" || welcome.SceneID != "scene_1" {
		t.Errorf("welcome = %+v", welcome)
	}
	var ds DocSyncPayload
	find(t, msgs, TypeDocSync, &ds)
	if len(ds.Document.Points) != 8 {
		t.Errorf("synced points = %d, want 8", len(ds.Document.Points))
	}

	c2 := newTestClient(h, "c2")
	h.addClient(c2)
	if got := types(drain(t, c)); len(got) != 1 || got[0] != TypePresenceJoin {
		t.Errorf("first client saw %v, want a join", got)
	}
}

func TestHubOperationFlow(t *testing.T) {
	h, _ := newTestHub()
	c1, c2 := newTestClient(h, "c1"), newTestClient(h, "c2")
	h.addClient(c1)
	h.addClient(c2)
	drain(t, c1)
	drain(t, c2)

	submit(t, h, c1, Operation{ID: "op_1", Type: OpMidpoint, Points: []string{"pt_a", "pt_b"}})

	own := drain(t, c1)
	var ack OperationAckPayload
	find(t, own, TypeOpAck, &ack)
	if ack.OperationID != "op_1" || ack.ServerSeq != 1 || len(ack.Created) != 1 {
		t.Errorf("ack = %+v", ack)
	}
	for _, m := range own {
		if m.Type == TypeOpBroadcast {
			t.Error("sender should not receive its own broadcast")
		}
	}

	other := drain(t, c2)
	var bc OperationBroadcastPayload
	find(t, other, TypeOpBroadcast, &bc)
	if bc.Operation.ID != "op_1" || bc.UserID != "user_c1" {
		t.Errorf("broadcast = %+v", bc)
	}
	var ds DocSyncPayload
	find(t, other, TypeDocSync, &ds)
	if ds.ServerSeq != 1 || len(ds.Document.Points) != 9 {
		t.Errorf("sync seq=%d points=%d", ds.ServerSeq, len(ds.Document.Points))
	}
}

func TestHubNacksRejectedOperation(t *testing.T) {
	h, _ := newTestHub()
	c1, c2 := newTestClient(h, "c1"), newTestClient(h, "c2")
	h.addClient(c1)
	h.addClient(c2)
	drain(t, c1)
	drain(t, c2)

	submit(t, h, c1, Operation{ID: "op_bad", Type: OpLineCreate, Points: []string{"pt_a", "pt_a"}})

	var nack OperationNackPayload
	find(t, drain(t, c1), TypeOpNack, &nack)
	if nack.OperationID != "op_bad" || nack.Reason == "" {
		t.Errorf("nack = %+v", nack)
	}
	if got := drain(t, c2); len(got) != 0 {
		t.Errorf("others saw %v for a rejected op", types(got))
	}
}

func TestHubDeletePrunesSelections(t *testing.T) {
	h, _ := newTestHub()
	c1, c2 := newTestClient(h, "c1"), newTestClient(h, "c2")
	h.addClient(c1)
	h.addClient(c2)

	sel, _ := json.Marshal(PresencePayload{Selection: []document.Ref{document.LineRef("ln_ab"), document.PointRef("pt_c")}})
	h.handleMessage(c2, &Message{Type: TypePresenceUpdate, Payload: sel})
	drain(t, c1)
	drain(t, c2)

	submit(t, h, c1, Operation{ID: "op_del", Type: OpObjectDelete, Refs: []document.Ref{document.LineRef("ln_ab")}})

	var state PresenceStatePayload
	find(t, drain(t, c2), TypePresenceState, &state)
	p := state.Presences["user_c2"]
	if p == nil || len(p.Selection) != 1 || p.Selection[0] != document.PointRef("pt_c") {
		t.Errorf("presence after delete = %+v", p)
	}
}

func TestHubLeaveReleasesDragAndSaves(t *testing.T) {
	h, store := newTestHub()
	c1, c2 := newTestClient(h, "c1"), newTestClient(h, "c2")
	h.addClient(c1)
	h.addClient(c2)

	submit(t, h, c1, Operation{ID: "op_1", Type: OpPointCreate, Pos: &CursorPos{X: 1, Y: 2}})
	submit(t, h, c1, Operation{
		ID:   "op_2",
		Type: OpDragBegin,
		Refs: []document.Ref{document.PointRef("pt_a")},
		Pos:  &CursorPos{X: -200, Y: -100},
	})
	submit(t, h, c1, Operation{ID: "op_3", Type: OpDragMove, Pos: &CursorPos{X: 0, Y: 0}})
	drain(t, c2)

	h.removeClient(c1)
	var ds DocSyncPayload
	find(t, drain(t, c2), TypeDocSync, &ds)
	if a := ds.Document.Points[0]; a.X != -200 || a.Y != -100 {
		t.Errorf("pt_a after owner left = (%g, %g), want restored", a.X, a.Y)
	}

	h.removeClient(c2)
	if _, open := h.room("scene_1"); open {
		t.Error("empty room should close")
	}
	if store.saves != 1 || len(store.docs["scene_1"].Points) != 9 {
		t.Errorf("saves = %d, stored points = %d", store.saves, len(store.docs["scene_1"].Points))
	}
}

func TestHubLoadFailureClosesClient(t *testing.T) {
	h := NewHub(func(context.Context, string) (*document.Document, error) {
		return nil, errors.New("db down")
	}, nil, engine.DefaultOptions(), 0)
	c := newTestClient(h, "c1")
	h.addClient(c)

	msgs := drain(t, c)
	if len(msgs) != 1 || msgs[0].Type != TypeError {
		t.Errorf("messages = %v", types(msgs))
	}
	select {
	case <-c.done:
	default:
		t.Fatal("client should be closed")
	}

	// The read pump may still deliver a message after the hub gave up.
	submit(t, h, c, Operation{ID: "op_1", Type: OpOrphansCollect})
	if got := drain(t, c); len(got) != 0 {
		t.Errorf("closed client was sent %v", types(got))
	}
}

func TestHubBroadcastRacingLeave(t *testing.T) {
	h, _ := newTestHub()
	stay := newTestClient(h, "stay")
	h.addClient(stay)

	for i := 0; i < 50; i++ {
		c := newTestClient(h, fmt.Sprintf("c%d", i))
		h.addClient(c)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.broadcastToRoom("scene_1", &Message{Type: TypePresenceUpdate}, "")
			}
		}()
		go func() {
			defer wg.Done()
			h.removeClient(c)
		}()
		wg.Wait()

		c.Send(&Message{Type: TypePresenceUpdate})
		drain(t, stay)
	}
	if _, open := h.room("scene_1"); !open {
		t.Error("room should stay open while a client remains")
	}
}

func TestClientSendAfterCloseIsDropped(t *testing.T) {
	h, _ := newTestHub()
	c := newTestClient(h, "c1")
	h.addClient(c)
	drain(t, c)

	h.removeClient(c)
	c.Close()
	c.Send(&Message{Type: TypePresenceUpdate})
	if got := drain(t, c); len(got) != 0 {
		t.Errorf("messages after leave = %v", types(got))
	}
}

func TestClientMarksStaleWhenBufferFull(t *testing.T) {
	h, _ := newTestHub()
	c := newTestClient(h, "c1")
	for i := 0; i < sendBuffer; i++ {
		c.Send(&Message{Type: TypePresenceUpdate})
	}
	if c.stale.Load() {
		t.Fatal("stale before the buffer overflowed")
	}
	c.Send(&Message{Type: TypeDocSync})
	if !c.stale.Load() || len(c.send) != sendBuffer {
		t.Errorf("stale = %v, queued = %d", c.stale.Load(), len(c.send))
	}
}

func TestHubStopSavesDirtyScenes(t *testing.T) {
	h, store := newTestHub()
	go h.Run()

	c := newTestClient(h, "c1")
	h.Register(c)
	select {
	case <-c.send:
	case <-time.After(time.Second):
		t.Fatal("no welcome")
	}

	submit(t, h, c, Operation{ID: "op_1", Type: OpPointCreate, Pos: &CursorPos{X: 1, Y: 2}})
	h.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saves != 1 || len(store.docs["scene_1"].Points) != 9 {
		t.Errorf("saves = %d after stop", store.saves)
	}
}
