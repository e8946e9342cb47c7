package ingest

import (
	"context"
	"sync/atomic"

	"github.com/nergy-se/roomcontroller/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the capacity of the inbound queue between the transport
// and the ingestor.
const DefaultQueueSize = 32

type Message struct {
	Topic   string
	Payload []byte
}

// Queue is a bounded inbound buffer. Push never blocks: when the queue is full
// the new message is dropped so the transport callback is never stalled.
type Queue struct {
	ch      chan Message
	dropped atomic.Uint64
	metrics *metrics.Metrics
}

func NewQueue(size int, m *metrics.Metrics) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		ch:      make(chan Message, size),
		metrics: m,
	}
}

// Push enqueues a message and reports whether it was accepted.
func (q *Queue) Push(topic string, payload []byte) bool {
	select {
	case q.ch <- Message{Topic: topic, Payload: payload}:
		return true
	default:
		n := q.dropped.Add(1)
		q.metrics.Dropped()
		logrus.WithFields(logrus.Fields{
			"topic":   topic,
			"dropped": n,
		}).Warn("inbound queue full, dropping message")
		return false
	}
}

func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) Len() int {
	return len(q.ch)
}

// Run consumes the queue until ctx is done.
func (i *Ingestor) Run(ctx context.Context, q *Queue) {
	for {
		select {
		case msg := <-q.ch:
			i.handleAndLog(msg)
		case <-ctx.Done():
			return
		}
	}
}
