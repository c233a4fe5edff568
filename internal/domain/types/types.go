// Package types contains common read shapes used across the application.
package types

// Entry represents a leaderboard row.
type Entry struct {
	Rank      int     `json:"rank"`
	ProfileID string  `json:"profile_id"`
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"`
}
