package presence

import (
	"slices"
	"time"
)

// Room is an active room. Members are kept in arrival order.
type Room struct {
	Code       string
	Members    []string
	CreatedAt  time.Time
	LastChatAt int64
}

// Table maps room codes to rooms and tracks codes reserved over HTTP that
// nobody has joined yet. Reservations are not rooms, so an empty room never
// appears in the table. Owned by the Manager's event loop.
type Table struct {
	rooms        map[string]*Room
	reservations map[string]time.Time // code -> expiry
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		rooms:        make(map[string]*Room),
		reservations: make(map[string]time.Time),
	}
}

// Get returns the room for code.
func (t *Table) Get(code string) (*Room, bool) {
	r, ok := t.rooms[code]
	return r, ok
}

// Len returns the number of active rooms.
func (t *Table) Len() int {
	return len(t.rooms)
}

// AddMember appends id to the room, creating the room on first reference.
// A reservation for the code is consumed.
func (t *Table) AddMember(code, id string, now time.Time) (r *Room, created bool) {
	r, ok := t.rooms[code]
	if !ok {
		r = &Room{Code: code, CreatedAt: now}
		t.rooms[code] = r
		delete(t.reservations, code)
		created = true
	}
	if !slices.Contains(r.Members, id) {
		r.Members = append(r.Members, id)
	}
	return r, created
}

// RemoveMember removes id from the room and deletes the room once empty.
func (t *Table) RemoveMember(code, id string) (removed, deleted bool) {
	r, ok := t.rooms[code]
	if !ok {
		return false, false
	}
	idx := slices.Index(r.Members, id)
	if idx < 0 {
		return false, false
	}
	r.Members = slices.Delete(r.Members, idx, idx+1)
	if len(r.Members) == 0 {
		delete(t.rooms, code)
		return true, true
	}
	return true, false
}

// MembersOf returns a snapshot of the room's members, empty if absent.
func (t *Table) MembersOf(code string) []string {
	r, ok := t.rooms[code]
	if !ok {
		return []string{}
	}
	return slices.Clone(r.Members)
}

// Reserve holds code until expiresAt.
func (t *Table) Reserve(code string, expiresAt time.Time) {
	t.reservations[code] = expiresAt
}

// Reserved reports whether code holds an unexpired reservation.
func (t *Table) Reserved(code string, now time.Time) bool {
	exp, ok := t.reservations[code]
	return ok && now.Before(exp)
}

// Taken reports whether code is used by an active room or a live reservation.
func (t *Table) Taken(code string, now time.Time) bool {
	if _, ok := t.rooms[code]; ok {
		return true
	}
	return t.Reserved(code, now)
}

// SweepReservations drops expired reservations and returns how many were removed.
func (t *Table) SweepReservations(now time.Time) int {
	n := 0
	for code, exp := range t.reservations {
		if !now.Before(exp) {
			delete(t.reservations, code)
			n++
		}
	}
	return n
}

// ReservationCount returns the number of outstanding reservations.
func (t *Table) ReservationCount() int {
	return len(t.reservations)
}

// Codes returns the codes of all active rooms.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.rooms))
	for code := range t.rooms {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}
