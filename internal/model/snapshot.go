package model

import "time"

// Snapshot is a precomputed set of aggregate statistics for one
// constituency. Snapshots are replaced wholesale on each refresh, never
// merged field by field.
type Snapshot struct {
	ACID             int         `json:"ac_id" db:"ac_id"`
	ComputedAt       time.Time   `json:"computed_at" db:"computed_at"`
	TotalMembers     int         `json:"total_members" db:"total_members"`
	TotalFamilies    int         `json:"total_families" db:"total_families"`
	TotalBooths      int         `json:"total_booths" db:"total_booths"`
	SurveysCompleted int         `json:"surveys_completed" db:"surveys_completed"`
	BoothStats       []BoothStat `json:"booth_stats" db:"booth_stats"`
}

// BoothStat holds the voter count for a single polling booth.
type BoothStat struct {
	BoothID    string `json:"booth_id"`
	BoothNo    int    `json:"booth_no"`
	BoothName  string `json:"booth_name"`
	VoterCount int    `json:"voter_count"`
}

// Age returns how old the snapshot is relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.ComputedAt)
}

// Stale reports whether the snapshot is older than maxAge.
func (s *Snapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return s.Age(now) > maxAge
}
