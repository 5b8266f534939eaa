package collab

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/inamate/geoconstruct/internal/document"
)

type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // userID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

func (pm *PresenceManager) Update(userID string, p *PresencePayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[userID] = p
}

func (pm *PresenceManager) Remove(userID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, userID)
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return maps.Clone(pm.presences)
}

// DropRefs removes deleted objects from every selection and returns the
// users whose selection changed.
func (pm *PresenceManager) DropRefs(removed []document.Ref) []string {
	if len(removed) == 0 {
		return nil
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var changed []string
	for userID, p := range pm.presences {
		kept := slices.DeleteFunc(slices.Clone(p.Selection), func(r document.Ref) bool {
			return slices.Contains(removed, r)
		})
		if len(kept) == len(p.Selection) {
			continue
		}
		next := *p
		next.Selection = kept
		pm.presences[userID] = &next
		changed = append(changed, userID)
	}
	slices.Sort(changed)
	return changed
}

func (pm *PresenceManager) StateMessage() *Message {
	msg, err := newMessage(TypePresenceState, PresenceStatePayload{Presences: pm.GetAll()})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return msg
}
