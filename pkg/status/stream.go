package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

func (s *Server) clientStreamHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("upgrade failure")
		return
	}

	// New clients get the current state right away.
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.WriteJSON(s.snapshots.Snapshot()); err != nil {
		c.Close()
		return
	}

	s.clientsLock.Lock()
	s.clientStreams = append(s.clientStreams, c)
	s.clientsLock.Unlock()

	// Clients only listen; reading keeps control frames flowing and notices
	// when the peer goes away.
	go func() {
		for {
			if _, _, err := c.NextReader(); err != nil {
				s.removeStream(c)
				c.Close()
				return
			}
		}
	}()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

// broadcast pushes the current snapshot to every stream client and drops the
// ones that can no longer be written to.
func (s *Server) broadcast() {
	data, err := json.Marshal(s.snapshots.Snapshot())
	if err != nil {
		s.log.WithError(err).Error("failed to marshal snapshot")
		return
	}

	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	deadstreams := []int{}
	for i, cs := range s.clientStreams {
		_ = cs.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cs.WriteMessage(websocket.TextMessage, data); err != nil {
			deadstreams = append(deadstreams, i)
		}
	}
	for i := len(deadstreams) - 1; i > -1; i-- {
		idx := deadstreams[i]
		s.clientStreams[idx].Close()
		s.clientStreams = append(s.clientStreams[:idx], s.clientStreams[idx+1:]...)
	}
}

func (s *Server) removeStream(c *websocket.Conn) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	for i, cs := range s.clientStreams {
		if cs == c {
			s.clientStreams = append(s.clientStreams[:i], s.clientStreams[i+1:]...)
			return
		}
	}
}

func (s *Server) closeStreams() {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	for _, cs := range s.clientStreams {
		_ = cs.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		cs.Close()
	}
	s.clientStreams = nil
}
