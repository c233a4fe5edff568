// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// DefaultRating is the rating a profile holds when it enters the pool.
const DefaultRating = 1500

// Profile is a rated entity. Rating is only changed by applying a vote.
type Profile struct {
	ID             string
	Name           string
	Title          string
	Company        string
	Major          string
	GraduationYear int
	IsStudent      bool
	Location       string
	LinkedInURL    string
	Rating         float64
	Enriched       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Sparse reports whether the profile is still missing attributes that an
// enrichment lookup could fill.
func (p Profile) Sparse() bool {
	if p.Enriched {
		return false
	}
	return strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Company) == "" || strings.TrimSpace(p.Location) == ""
}

// Attributes are the descriptive fields an enrichment lookup may fill in.
// Empty values leave the stored field untouched.
type Attributes struct {
	Name     string
	Title    string
	Company  string
	Location string
}

// Apply merges non-empty attributes into p and marks it enriched.
func (a Attributes) Apply(p Profile) Profile {
	if a.Name != "" && p.Name == "" {
		p.Name = a.Name
	}
	if a.Title != "" {
		p.Title = a.Title
	}
	if a.Company != "" {
		p.Company = a.Company
	}
	if a.Location != "" {
		p.Location = a.Location
	}
	p.Enriched = true
	return p
}

// EnrichJob asks for one profile to be hydrated from the people-data API.
type EnrichJob struct {
	ProfileID   string
	LinkedInURL string
	Name        string
	RequestedAt time.Time
}

// DedupeKey identifies the job for at-most-once scheduling.
func (j EnrichJob) DedupeKey() string {
	return "enrich:" + j.ProfileID
}
