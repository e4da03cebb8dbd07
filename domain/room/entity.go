package room

import (
	"encoding/json"
	"time"
)

// Stats are the self-reported study numbers of a member.
type Stats struct {
	ExperiencePoints int `json:"xpPoints"`
	FocusTimeMinutes int `json:"focusTime"`
	TasksCompleted   int `json:"tasksCompleted"`
	StreakDays       int `json:"streakDays"`
}

// StatsPatch is a partial stats update. Nil fields are left unchanged.
type StatsPatch struct {
	ExperiencePoints *int `json:"xpPoints,omitempty"`
	FocusTimeMinutes *int `json:"focusTime,omitempty"`
	TasksCompleted   *int `json:"tasksCompleted,omitempty"`
	StreakDays       *int `json:"streakDays,omitempty"`
}

// Apply returns s with the fields present in p overwritten.
func (p StatsPatch) Apply(s Stats) Stats {
	if p.ExperiencePoints != nil {
		s.ExperiencePoints = *p.ExperiencePoints
	}
	if p.FocusTimeMinutes != nil {
		s.FocusTimeMinutes = *p.FocusTimeMinutes
	}
	if p.TasksCompleted != nil {
		s.TasksCompleted = *p.TasksCompleted
	}
	if p.StreakDays != nil {
		s.StreakDays = *p.StreakDays
	}
	return s
}

// HasNegative reports whether any provided field is below zero.
func (p StatsPatch) HasNegative() bool {
	for _, v := range []*int{p.ExperiencePoints, p.FocusTimeMinutes, p.TasksCompleted, p.StreakDays} {
		if v != nil && *v < 0 {
			return true
		}
	}
	return false
}

// Member identifies a session inside a room.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LeaderboardEntry is one ranked row of a room leaderboard.
type LeaderboardEntry struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ExperiencePoints int    `json:"xpPoints"`
	FocusTimeMinutes int    `json:"focusTime"`
	TasksCompleted   int    `json:"tasksCompleted"`
	StreakDays       int    `json:"streakDays"`
}

// Signal is a relayed WebRTC negotiation payload.
type Signal struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// ChatMessage is a relayed chat line. TS is unix milliseconds.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}

// RoomError explains why a create or join could not proceed.
type RoomError struct {
	Message string `json:"message"`
}

// Info is the read-side view of an active room.
type Info struct {
	Code      string    `json:"roomCode"`
	Members   []Member  `json:"members"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
}
