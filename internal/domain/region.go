package domain

import "time"

// Region represents an operating region (ISL, LHR, RWP, ...).
type Region struct {
	ID        string
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
