// pkg/api/ws.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/model"
)

// Push channel event names.
const (
	EventConnected   = "connected"
	EventDataUpdate  = "data_update"
	EventRequestData = "request_data"
)

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	maxMessageSize      = 4096

	connectedMessage = "Connected to Digital Twin Dashboard"
)

// Frame is one message on the push channel, in either direction.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inFrame decodes client frames; the payload is ignored.
type inFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades to a websocket, acknowledges with "connected", replays the
// latest snapshot and then forwards every published snapshot as "data_update".
func (a *API) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	sub := a.hub.Subscribe()
	log := a.log.WithFields(logrus.Fields{"subscriber": sub.ID, "remote": r.RemoteAddr})
	log.Info("dashboard client connected")

	requests := make(chan struct{}, 1)
	done := make(chan struct{})
	go a.readPump(conn, log, requests, done)
	a.writePump(conn, log, sub.C, requests, done)

	a.hub.Unsubscribe(sub)
	conn.Close()
	log.Info("dashboard client disconnected")
}

// readPump handles client frames until the connection fails, then closes done.
func (a *API) readPump(conn *websocket.Conn, log logrus.FieldLogger, requests chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	pongWait := a.PingInterval * 2
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		switch in.Event {
		case EventRequestData:
			select {
			case requests <- struct{}{}:
			default: // one pending request is enough
			}
		default:
			log.WithField("event", in.Event).Debug("ignoring client event")
		}
	}
}

// writePump is the only writer on conn.
func (a *API) writePump(conn *websocket.Conn, log logrus.FieldLogger, snaps <-chan model.Snapshot, requests <-chan struct{}, done <-chan struct{}) {
	ping := time.NewTicker(a.PingInterval)
	defer ping.Stop()

	send := func(f Frame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			log.WithError(err).Debug("websocket write failed")
			return false
		}
		return true
	}

	if !send(Frame{Event: EventConnected, Data: map[string]string{"message": connectedMessage}}) {
		return
	}
	for {
		select {
		case <-done:
			return
		case s, ok := <-snaps:
			if !ok {
				return
			}
			if !send(Frame{Event: EventDataUpdate, Data: s}) {
				return
			}
		case <-requests:
			s, ok := a.hub.Pull()
			if !ok {
				// Nothing published yet; the first publish reaches this subscriber anyway.
				log.Debug("request_data before first snapshot")
				continue
			}
			if !send(Frame{Event: EventDataUpdate, Data: s}) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
