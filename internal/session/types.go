package session

import "time"

// CreateRequest defines payload for creating a new voice terminal session.
type CreateRequest struct {
	UserID  string `json:"user_id"`
	CLI     string `json:"cli"`
	Backend string `json:"backend"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Status          Status    `json:"status"`
	CLI             string    `json:"cli"`
	Backend         string    `json:"backend"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
