package presence

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/study-room-signaling/domain/room"
)

const (
	// DefaultName is the display name of a session that has not set one.
	DefaultName = "Anonymous"

	// MaxNameLength caps display names, in runes.
	MaxNameLength = 50
)

// Session is the server-side state of one live connection.
type Session struct {
	ID          string
	Name        string
	RoomCode    string
	Stats       room.Stats
	ConnectedAt time.Time

	out Outbox
}

// Member returns the public identity of the session.
func (s *Session) Member() room.Member {
	return room.Member{ID: s.ID, Name: s.Name}
}

// Registry maps session ids to sessions. It is owned by the Manager's
// event loop and is not safe for concurrent use.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a new session with default name and zero stats.
func (r *Registry) Add(id string, now time.Time) *Session {
	s := &Session{ID: id, Name: DefaultName, ConnectedAt: now}
	r.sessions[id] = s
	return s
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes the session. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	delete(r.sessions, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// SetName overwrites the display name. Blank names and unknown ids are no-ops.
func (r *Registry) SetName(id, name string) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	name = sanitizeName(name)
	if name == "" {
		return false
	}
	s.Name = name
	return true
}

// UpdateStats merges patch into the session's stats.
func (r *Registry) UpdateStats(id string, patch room.StatsPatch) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	if patch.HasNegative() {
		return nil, ErrInvalidStats
	}
	s.Stats = patch.Apply(s.Stats)
	return s, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}
