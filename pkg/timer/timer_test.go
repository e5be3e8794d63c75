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
	"bufio"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
)

func TestApply(t *testing.T) {
	var a, b Recorder
	Apply(Multi{&a, &b}, []splitter.Action{
		{Kind: splitter.ActReset},
		{Kind: splitter.ActStart},
		{Kind: splitter.ActPauseGameTime},
		{Kind: splitter.ActSplit, Rule: "Prologue"},
		{Kind: splitter.ActSetGameTime, Time: 3 * time.Second},
		{Kind: splitter.ActSetVariable, Key: "Level", Value: "1"},
	})
	assert.Equal(t, []string{"reset", "start", "pause", "split:Prologue"}, a.Ops())
	assert.Equal(t, a.Calls, b.Calls)
	assert.Equal(t, Call{Op: "time", Time: 3 * time.Second}, a.Calls[4])
	assert.Equal(t, Call{Op: "var", Key: "Level", Value: "1"}, a.Calls[5])
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0.000", FormatSeconds(0))
	assert.Equal(t, "83.456", FormatSeconds(83456*time.Millisecond))
	assert.Equal(t, "3600.000", FormatSeconds(time.Hour))
}

func TestHub(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Start()
	hub.SetGameTime(1500 * time.Millisecond)
	hub.SetGameTime(1500 * time.Millisecond)
	hub.SetVariable("Strawberries", "3")
	hub.Split("Chapter1")

	want := []command{
		{Command: "start"},
		{Command: "setGameTime", Time: "1.500"},
		{Command: "setCustomVariable", Key: "Strawberries", Value: "3"},
		{Command: "split"},
	}
	for _, w := range want {
		var got command
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, w, got)
	}

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestLiveSplit(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	lines := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		s := bufio.NewScanner(conn)
		for s.Scan() {
			lines <- strings.TrimSuffix(s.Text(), "\r")
		}
	}()

	ls := NewLiveSplit(ln.Addr().String())
	defer ls.Close()
	ls.Reset()
	ls.Start()
	ls.SetGameTime(2 * time.Second)
	ls.SetGameTime(2 * time.Second)
	ls.SetVariable("Level", "a-00")
	ls.Split("Chapter1")
	ls.PauseGameTime()

	for _, want := range []string{"reset", "starttimer", "setgametime 2.000", "split", "pausegametime"} {
		select {
		case got := <-lines:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestLiveSplitUnreachable(t *testing.T) {
	ls := NewLiveSplit("127.0.0.1:1")
	ls.dial = func(string, string) (net.Conn, error) { return nil, errors.New("connection refused") }
	ls.Start()
	assert.NoError(t, ls.Close())
}

func TestLiveSplitBackoff(t *testing.T) {
	var dials int
	clock := time.Unix(0, 0)
	ls := NewLiveSplit("127.0.0.1:1")
	ls.now = func() time.Time { return clock }
	ls.dial = func(string, string) (net.Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	ls.Start()
	ls.Split("Prologue")
	ls.PauseGameTime()
	assert.Equal(t, 1, dials)

	clock = clock.Add(minBackoff)
	ls.Split("Chapter1")
	assert.Equal(t, 2, dials)
	assert.Equal(t, 2*minBackoff, ls.backoff)

	for range 10 {
		clock = clock.Add(maxBackoff)
		ls.Reset()
	}
	assert.Equal(t, maxBackoff, ls.backoff)
}

func TestQueueSlowTimer(t *testing.T) {
	var dials atomic.Int32
	ls := NewLiveSplit("127.0.0.1:1")
	ls.dial = func(string, string) (net.Conn, error) {
		dials.Add(1)
		time.Sleep(200 * time.Millisecond)
		return nil, errors.New("i/o timeout")
	}
	q := NewQueue(ls, 0)

	begin := time.Now()
	for i := range 5 {
		Apply(q, []splitter.Action{
			{Kind: splitter.ActReset},
			{Kind: splitter.ActStart},
			{Kind: splitter.ActPauseGameTime},
			{Kind: splitter.ActSetGameTime, Time: time.Duration(i) * time.Second},
			{Kind: splitter.ActSplit, Rule: "Prologue"},
		})
	}
	assert.Less(t, time.Since(begin), 100*time.Millisecond)

	require.NoError(t, q.Close())
	assert.Equal(t, int32(1), dials.Load())
}

func TestQueueOrder(t *testing.T) {
	var rec Recorder
	q := NewQueue(&rec, 0)
	Apply(q, []splitter.Action{
		{Kind: splitter.ActReset},
		{Kind: splitter.ActStart},
		{Kind: splitter.ActSetGameTime, Time: time.Second},
		{Kind: splitter.ActSplit, Rule: "Prologue"},
		{Kind: splitter.ActSetVariable, Key: "Level", Value: "1"},
	})
	require.NoError(t, q.Close())
	assert.Equal(t, []string{"reset", "start", "split:Prologue"}, rec.Ops())
	assert.Equal(t, Call{Op: "time", Time: time.Second}, rec.Calls[2])
	assert.Zero(t, q.Dropped())

	q.Split("Chapter1")
	assert.Len(t, rec.Calls, 5)
	assert.NoError(t, q.Close())
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	blocked := &blockingTimer{release: release}
	q := NewQueue(blocked, 1)
	q.Start()
	require.Eventually(t, func() bool { return blocked.started.Load() }, time.Second, time.Millisecond)
	q.Split("a")
	q.Split("b")
	assert.Equal(t, uint64(1), q.Dropped())
	close(release)
	require.NoError(t, q.Close())
	assert.Equal(t, int32(2), blocked.calls.Load())
}

type blockingTimer struct {
	Recorder
	release chan struct{}
	started atomic.Bool
	calls   atomic.Int32
}

func (b *blockingTimer) Start() {
	b.calls.Add(1)
	b.started.Store(true)
	<-b.release
}

func (b *blockingTimer) Split(string) { b.calls.Add(1) }
