// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-delve/delve/pkg/logflags"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/metrics"
)

// QueueSize is the default number of pending calls a Queue holds.
const QueueSize = 256

// Queue hands calls to a timer on its own goroutine so the caller never
// waits on the timer's I/O. Calls are dropped while the queue is full.
type Queue struct {
	t     Timer
	calls chan func(Timer)
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewQueue starts delivering to t. size <= 0 selects QueueSize.
func NewQueue(t Timer, size int) *Queue {
	if size <= 0 {
		size = QueueSize
	}
	q := &Queue{
		t:     t,
		calls: make(chan func(Timer), size),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for f := range q.calls {
		f(q.t)
	}
}

func (q *Queue) push(op string, f func(Timer)) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.calls <- f:
	default:
		n := q.dropped.Add(1)
		metrics.TimerDropped.WithLabelValues(op).Inc()
		logflags.DebuggerLogger().Debugf("timer queue full, dropped %s (%d so far)", op, n)
	}
}

// Dropped returns the number of calls lost to a full queue.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Close stops accepting calls and waits until the pending ones are
// delivered.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.calls)
	}
	q.mu.Unlock()
	<-q.done
	return nil
}

func (q *Queue) Start() { q.push("start", func(t Timer) { t.Start() }) }

func (q *Queue) Reset() { q.push("reset", func(t Timer) { t.Reset() }) }

func (q *Queue) Split(rule string) { q.push("split", func(t Timer) { t.Split(rule) }) }

func (q *Queue) PauseGameTime() { q.push("pause", func(t Timer) { t.PauseGameTime() }) }

func (q *Queue) SetGameTime(d time.Duration) {
	q.push("game time", func(t Timer) { t.SetGameTime(d) })
}

func (q *Queue) SetVariable(key, value string) {
	q.push("variable", func(t Timer) { t.SetVariable(key, value) })
}
