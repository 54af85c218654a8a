package notify

import "time"

// retryQueue re-enqueues a job after a delay unless the manager has stopped.
type retryQueue struct {
	out  chan<- job
	done <-chan struct{}
}

func newRetryQueue(out chan<- job, done <-chan struct{}) *retryQueue {
	return &retryQueue{out: out, done: done}
}

func (q *retryQueue) Enqueue(j job, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		select {
		case <-q.done:
		case q.out <- j:
			metricQueueLen.Set(int64(len(q.out)))
		}
	})
}
