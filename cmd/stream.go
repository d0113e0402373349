package cmd

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/fleet"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream message types.
const (
	msgStatus = "status"
	msgAccess = "access"
	msgStats  = "stats"
	msgError  = "error"
)

// streamRequest is a client message on /ws. An empty Type means "access".
type streamRequest struct {
	Type string `json:"type"`
	accessRequest
}

// streamResponse is a server message on /ws.
type streamResponse struct {
	Type       string                        `json:"type"`
	Models     []string                      `json:"models,omitempty"`
	FrameCount int                           `json:"frameCount,omitempty"`
	Page       *sim.Page                     `json:"page,omitempty"`
	Results    map[string]fleet.AccessReport `json:"results,omitempty"`
	Stats      *fleet.Overview               `json:"stats,omitempty"`
	Error      string                        `json:"error,omitempty"`
}

// handleStream runs an interactive access session: every incoming page is
// applied to all families and the per-family results are sent back.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("upgrading connection: %v", err)
		return
	}
	defer conn.Close()
	logrus.Debugf("stream client connected from %s", r.RemoteAddr)

	status := streamResponse{Type: msgStatus, Models: s.fleet.Families(), FrameCount: s.fleet.FrameCount()}
	if err := conn.WriteJSON(status); err != nil {
		logrus.Warnf("sending status: %v", err)
		return
	}

	for {
		var msg streamRequest
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logrus.Warnf("reading stream message: %v", err)
			}
			break
		}
		if err := conn.WriteJSON(s.streamReply(msg)); err != nil {
			logrus.Warnf("writing stream message: %v", err)
			break
		}
	}
	logrus.Debugf("stream client %s disconnected", r.RemoteAddr)
}

func (s *server) streamReply(msg streamRequest) streamResponse {
	switch msg.Type {
	case "", msgAccess:
		page := msg.page()
		results, err := s.fleet.AccessAll(page)
		if err != nil {
			return streamResponse{Type: msgError, Error: err.Error()}
		}
		return streamResponse{Type: msgAccess, Page: &page, Results: results}
	case msgStats:
		ov := s.fleet.Stats()
		return streamResponse{Type: msgStats, Stats: &ov}
	default:
		return streamResponse{Type: msgError, Error: "unknown message type " + msg.Type}
	}
}
