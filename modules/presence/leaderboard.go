package presence

import (
	"sort"

	"github.com/example/study-room-signaling/domain/room"
)

// BuildLeaderboard ranks sessions by experience points, then focus time,
// both descending. Ties keep the order of the input, which is arrival order.
func BuildLeaderboard(members []*Session) []room.LeaderboardEntry {
	entries := make([]room.LeaderboardEntry, 0, len(members))
	for _, s := range members {
		entries = append(entries, room.LeaderboardEntry{
			ID:               s.ID,
			Name:             s.Name,
			ExperiencePoints: s.Stats.ExperiencePoints,
			FocusTimeMinutes: s.Stats.FocusTimeMinutes,
			TasksCompleted:   s.Stats.TasksCompleted,
			StreakDays:       s.Stats.StreakDays,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ExperiencePoints != entries[j].ExperiencePoints {
			return entries[i].ExperiencePoints > entries[j].ExperiencePoints
		}
		return entries[i].FocusTimeMinutes > entries[j].FocusTimeMinutes
	})
	return entries
}
