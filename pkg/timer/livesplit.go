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
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-delve/delve/pkg/logflags"
)

const (
	dialTimeout = 2 * time.Second
	minBackoff  = 500 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// LiveSplit speaks the line based protocol of the LiveSplit Server
// component. The connection is dialed lazily and re-dialed after a
// failed write. While the server is unreachable, lines are dropped
// until the next dial attempt, which backs off up to maxBackoff. Custom
// variables have no command in this protocol and are dropped.
//
// Calls write to the network; wrap the client in a Queue to keep them
// off the caller's goroutine.
type LiveSplit struct {
	addr string

	mu       sync.Mutex
	conn     net.Conn
	w        *bufio.Writer
	lastTime string
	backoff  time.Duration
	retryAt  time.Time
	now      func() time.Time
	dial     func(network, addr string) (net.Conn, error)
}

// NewLiveSplit returns a client for the server at addr (host:port).
func NewLiveSplit(addr string) *LiveSplit {
	return &LiveSplit{
		addr: addr,
		now:  time.Now,
		dial: func(network, addr string) (net.Conn, error) {
			return net.DialTimeout(network, addr, dialTimeout)
		},
	}
}

func (l *LiveSplit) send(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		now := l.now()
		if now.Before(l.retryAt) {
			return
		}
		conn, err := l.dial("tcp", l.addr)
		if err != nil {
			l.backoff = min(max(2*l.backoff, minBackoff), maxBackoff)
			l.retryAt = l.now().Add(l.backoff)
			logflags.DebuggerLogger().Debugf("dial livesplit server %s: %v, retry in %v", l.addr, err, l.backoff)
			return
		}
		l.conn, l.w = conn, bufio.NewWriter(conn)
		l.backoff, l.retryAt = 0, time.Time{}
		l.lastTime = ""
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_, err := fmt.Fprintf(l.w, "%s\r\n", line)
	if err == nil {
		err = l.w.Flush()
	}
	if err == nil {
		return
	}
	logflags.DebuggerLogger().Warnf("livesplit server %s: %v", l.addr, err)
	l.conn.Close()
	l.conn, l.w = nil, nil
}

// Close drops the connection.
func (l *LiveSplit) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn, l.w = nil, nil
	return err
}

func (l *LiveSplit) Start() { l.send("starttimer") }

func (l *LiveSplit) Reset() { l.send("reset") }

func (l *LiveSplit) Split(string) { l.send("split") }

func (l *LiveSplit) PauseGameTime() { l.send("pausegametime") }

func (l *LiveSplit) SetGameTime(d time.Duration) {
	s := FormatSeconds(d)
	l.mu.Lock()
	same := s == l.lastTime
	l.lastTime = s
	l.mu.Unlock()
	if !same {
		l.send("setgametime " + s)
	}
}

func (l *LiveSplit) SetVariable(string, string) {}
