// Package jobs runs the bulk calendar operations (full sync, account
// deletion) as resumable jobs on a message queue. A job's durable progress
// record lives in the store; the queue message carries only the job identity,
// so redelivery never duplicates completed work.
package jobs

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	json "github.com/goccy/go-json"

	"github.com/tartampluch/go-hebsync/internal/config"
)

// jobRequest is the wire payload of every queue message: nothing but the
// identity of the durable job record to advance.
type jobRequest struct {
	JobID string `json:"job_id"`
}

// Queue bundles the in-process pub/sub with its logger so main can wire the
// publisher and the router from one place.
type Queue struct {
	PubSub *gochannel.GoChannel
	Logger watermill.LoggerAdapter
}

// NewQueue builds the in-process queue. Persistent delivery keeps published
// continuations for subscribers that attach later during startup.
func NewQueue() *Queue {
	logger := watermill.NewSlogLogger(slog.Default())
	return &Queue{
		PubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
			Persistent:          true,
		}, logger),
		Logger: logger,
	}
}

// Close shuts the pub/sub down, releasing subscriber goroutines.
func (q *Queue) Close() error {
	return q.PubSub.Close()
}

// publish serializes a job request onto a topic.
func (q *Queue) publish(topic, jobID string) error {
	raw, err := json.Marshal(jobRequest{JobID: jobID})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), raw)
	if err := q.PubSub.Publish(topic, msg); err != nil {
		return err
	}
	slog.Debug(config.MsgJobStarted,
		config.LogKeyComponent, config.CompJobs,
		config.LogKeyTopic, topic,
		config.LogKeyJob, jobID,
	)
	return nil
}

// NewRouter registers the sync and deletion handlers. Handler panics are
// contained and transient failures are redelivered a few times before the
// message is dropped; a dropped message only delays a job, since the durable
// record still holds its remaining work.
func (q *Queue) NewRouter(runner *Runner) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, q.Logger)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{MaxRetries: 3, Logger: q.Logger}.Middleware,
	)

	router.AddNoPublisherHandler(
		config.HandlerSyncJobs,
		config.TopicSyncJobs,
		q.PubSub,
		runner.HandleSync,
	)
	router.AddNoPublisherHandler(
		config.HandlerDeletionJobs,
		config.TopicDeletionJobs,
		q.PubSub,
		runner.HandleDeletion,
	)
	return router, nil
}
