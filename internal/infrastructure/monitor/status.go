package monitor

import "time"

type Status struct {
	Provider       bool      `json:"provider"`
	PostgreSQL     bool      `json:"postgresql"`
	Redis          bool      `json:"redis"`
	LocalStore     bool      `json:"local_store"`
	PendingPatches int       `json:"pending_patches"`
	LastCheck      time.Time `json:"last_check"`
}
