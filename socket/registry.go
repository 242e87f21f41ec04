package socket

import (
	"sync"

	"pagesync/pkg/logger"
)

// Registry tracks which clients are joined to which document room. Rooms
// are created lazily on first join and removed when the last participant
// leaves; operations on a missing room are no-ops. It is the only shared
// mutable state outside the database.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Client]bool)}
}

// Join adds the client to the room for docID. Joining twice is harmless.
func (r *Registry) Join(docID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[docID] == nil {
		r.rooms[docID] = make(map[*Client]bool)
	}
	r.rooms[docID][c] = true
}

// Leave removes the client from the room for docID, dropping the room if
// it became empty.
func (r *Registry) Leave(docID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(docID, c)
}

// LeaveAll removes the client from every room it belongs to. Called on
// disconnect.
func (r *Registry) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for docID, members := range r.rooms {
		if members[c] {
			r.leaveLocked(docID, c)
		}
	}
}

func (r *Registry) leaveLocked(docID string, c *Client) {
	members, ok := r.rooms[docID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, docID)
		logger.Sugar.Infof("Closed empty room: %s", docID)
	}
}

// RoomSize reports the current number of participants in the room.
func (r *Registry) RoomSize(docID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[docID])
}

// Broadcast delivers the event to every participant in the room except
// exclude (the sender). Recipients are collected under the lock and the
// sends happen outside it so a slow socket cannot stall membership changes.
func (r *Registry) Broadcast(docID string, exclude *Client, event string, payload any) {
	r.mu.Lock()
	recipients := make([]*Client, 0, len(r.rooms[docID]))
	for c := range r.rooms[docID] {
		if c != exclude {
			recipients = append(recipients, c)
		}
	}
	r.mu.Unlock()

	if len(recipients) == 0 {
		return
	}
	msg, err := NewMessage(event, payload)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s broadcast: %v", event, err)
		return
	}
	for _, c := range recipients {
		c.enqueue(msg)
	}
}

// EmitTo unicasts the event to a single participant.
func (r *Registry) EmitTo(c *Client, event string, payload any) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s for client %s: %v", event, c.ID, err)
		return
	}
	c.enqueue(msg)
}
