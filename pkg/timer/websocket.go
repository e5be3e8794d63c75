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
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-delve/delve/pkg/logflags"
	"github.com/gorilla/websocket"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	// LiveSplit One runs from a browser origin of its own.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// command is one message of the LiveSplit One server protocol.
type command struct {
	Command string `json:"command"`
	Time    string `json:"time,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(cmd *command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(cmd)
}

// Hub is a LiveSplit One server: timers connect to it over a websocket
// and receive every command. Game time updates are only sent when they
// change.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	lastTime string
}

// NewHub returns a hub without clients.
func NewHub() *Hub {
	return &Hub{clients: map[*client]struct{}{}}
}

// ServeHTTP upgrades the request and registers the connection until the
// peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logflags.DebuggerLogger().Warnf("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.lastTime = ""
	h.mu.Unlock()
	logflags.DebuggerLogger().Infof("timer connected from %s", conn.RemoteAddr())

	go func() {
		defer h.remove(c)
		for {
			// replies and events from the timer are not used
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
	logflags.DebuggerLogger().Infof("timer at %s disconnected", c.conn.RemoteAddr())
}

// Clients returns the number of connected timers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(cmd *command) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		if err := c.send(cmd); err != nil {
			logflags.DebuggerLogger().Warnf("send %s to %s: %v", cmd.Command, c.conn.RemoteAddr(), err)
			c.conn.Close()
		}
	}
}

func (h *Hub) Start() { h.broadcast(&command{Command: "start"}) }

func (h *Hub) Reset() {
	h.broadcast(&command{Command: "reset"})
	h.mu.Lock()
	h.lastTime = ""
	h.mu.Unlock()
}

func (h *Hub) Split(string) { h.broadcast(&command{Command: "split"}) }

func (h *Hub) PauseGameTime() { h.broadcast(&command{Command: "pauseGameTime"}) }

func (h *Hub) SetGameTime(d time.Duration) {
	s := FormatSeconds(d)
	h.mu.Lock()
	same := s == h.lastTime
	h.lastTime = s
	h.mu.Unlock()
	if !same {
		h.broadcast(&command{Command: "setGameTime", Time: s})
	}
}

func (h *Hub) SetVariable(key, value string) {
	h.broadcast(&command{Command: "setCustomVariable", Key: key, Value: value})
}

// FormatSeconds renders d as decimal seconds with millisecond precision.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
