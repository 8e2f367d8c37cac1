package domain

import "time"

// Branch represents a single restaurant site within a region.
type Branch struct {
	ID        string
	RegionID  string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
