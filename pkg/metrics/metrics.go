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

// Package metrics exposes the auto-splitter's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ticks counts update ticks by outcome.
	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csplit_ticks_total",
		Help: "Update ticks by outcome",
	}, []string{"outcome"})

	// TickDuration tracks how long one tick's reads and evaluation take.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "csplit_tick_duration_seconds",
		Help:    "Tick duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us to ~100ms
	})

	// Attaches counts attach attempts by result.
	Attaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csplit_attach_total",
		Help: "Attach attempts by result",
	}, []string{"result"})

	// Attached is 1 while a session holds a process.
	Attached = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csplit_attached",
		Help: "Whether a game process is attached",
	})

	// Splits counts fired splits by rule.
	Splits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csplit_splits_total",
		Help: "Splits fired by rule",
	}, []string{"rule"})

	// Runs counts detected run starts.
	Runs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csplit_runs_total",
		Help: "Detected run starts",
	})

	// SplitIndex is the position of the next split in the route.
	SplitIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csplit_split_index",
		Help: "Index of the next split in the route",
	})

	// TimerDropped counts timer calls lost to a full delivery queue.
	TimerDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csplit_timer_dropped_total",
		Help: "Timer calls dropped because the delivery queue was full",
	}, []string{"op"})
)
