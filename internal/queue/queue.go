package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Queue names in priority order.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queue wraps the Asynq client and handler mux
type Queue struct {
	Client *asynq.Client
	Mux    *asynq.ServeMux

	redisOpt    asynq.RedisConnOpt
	concurrency int
}

// NewQueue creates a new queue client and mux
func NewQueue(redisURL string, concurrency int) (*Queue, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis URL: %w", err)
	}

	logrus.Infof("Queue client initialized (concurrency: %d)", concurrency)

	return &Queue{
		Client:      asynq.NewClient(redisOpt),
		Mux:         asynq.NewServeMux(),
		redisOpt:    redisOpt,
		concurrency: concurrency,
	}, nil
}

// ServerConfig returns the worker server configuration
func (q *Queue) ServerConfig() asynq.Config {
	return asynq.Config{
		Concurrency: q.concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		Logger:   logrus.StandardLogger(),
		LogLevel: asynq.InfoLevel,
	}
}

// NewServer creates a worker server that processes tasks registered on Mux
func (q *Queue) NewServer() *asynq.Server {
	return asynq.NewServer(q.redisOpt, q.ServerConfig())
}

// Close gracefully closes the queue client
func (q *Queue) Close() error {
	if q.Client != nil {
		logrus.Info("Closing queue client...")
		return q.Client.Close()
	}
	return nil
}
