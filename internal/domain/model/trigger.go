package model

import "time"

// Trigger asks the service to recompute the risk assessment.
type Trigger struct {
	ID          string    // unique id, used in logs
	Reason      string    // e.g. "api", "schedule", "startup"
	RequestedAt time.Time // when the trigger was created
}
