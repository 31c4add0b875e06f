package queue

import "time"

// Config holds configuration for the queue manager
type Config struct {
	// PollInterval is how often workers poll for messages
	PollInterval time.Duration

	// Concurrency is the number of concurrent pollers
	Concurrency int

	// VisibilityTimeout is the message lease duration before redelivery
	VisibilityTimeout time.Duration

	// MaxReceive is the maximum times a message can be received before dead-letter
	MaxReceive int

	// QueueName identifies the queue in logs and stats
	QueueName string
}

// NewDefaultConfig creates a queue configuration with sensible defaults
func NewDefaultConfig() Config {
	return Config{
		PollInterval:      250 * time.Millisecond,
		Concurrency:       4,
		VisibilityTimeout: 2 * time.Minute,
		MaxReceive:        4,
		QueueName:         "congruo_work",
	}
}
