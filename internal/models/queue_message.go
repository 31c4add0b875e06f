package models

import (
	"errors"
	"time"
)

// ErrNoMessage is returned when the queue has no visible messages
var ErrNoMessage = errors.New("no messages in queue")

// QueueMessage is the persisted queue envelope around a work unit. A message
// is visible (eligible for dequeue) once now >= VisibleAt; dequeuing leases
// it by pushing VisibleAt forward, so crashed workers surface the message
// again after the visibility timeout.
type QueueMessage struct {
	MessageID  string    `json:"message_id" badgerhold:"key"`
	JobID      string    `json:"job_id" badgerhold:"index"`
	Unit       *WorkUnit `json:"unit"`
	Attempts   int       `json:"attempts"` // Delivery count, incremented on dequeue
	VisibleAt  time.Time `json:"visible_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
