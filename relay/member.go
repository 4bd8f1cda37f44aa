package relay

import (
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/inklet-dev/inklet/board"
)

// member is one relay connection. The connection id is ephemeral and
// relay-assigned; it identifies the connection for presentation only
// and is unrelated to object identities.
type member struct {
	hub  *Hub
	conn *websocket.Conn

	connectionId string
	send         chan []byte
}

func newMember(hub *Hub, conn *websocket.Conn, connectionId string) *member {
	return &member{
		hub:          hub,
		conn:         conn,
		connectionId: connectionId,
		send:         make(chan []byte, hub.settings.SendBufferSize),
	}
}

// queue hands bytes to the write pump, best effort. Delivery is not
// acknowledged; a member that cannot keep up loses messages rather
// than stalling the session.
func (self *member) queue(messageBytes []byte) {
	select {
	case self.send <- messageBytes:
	default:
		glog.Infof("[hub]%s drop ->%s, buffer full\n", self.hub.name, self.connectionId)
	}
}

func (self *member) readPump() {
	defer func() {
		select {
		case self.hub.unregister <- self:
		case <-self.hub.ctx.Done():
		}
		self.conn.Close()
	}()

	self.conn.SetReadLimit(self.hub.settings.MaxMessageSize)
	for {
		self.conn.SetReadDeadline(time.Now().Add(self.hub.settings.ReadTimeout))
		_, messageBytes, err := self.conn.ReadMessage()
		if err != nil {
			glog.V(1).Infof("[hub]%s %s<- closed = %s\n", self.hub.name, self.connectionId, err)
			return
		}
		if len(messageBytes) == 0 {
			// ping
			continue
		}

		message, err := board.DecodeMessage(messageBytes)
		if err != nil {
			// a hardened relay logs and drops, never raises
			glog.Infof("[hub]%s %s<- drop malformed = %s\n", self.hub.name, self.connectionId, err)
			continue
		}
		switch message.Event {
		case board.MessageObjectAdded, board.MessageObjectModified,
			board.MessageObjectRemoved, board.MessageCanvasClear:
		default:
			// clients send object events only; sync and ack are
			// relay-originated
			glog.Infof("[hub]%s %s<- drop %s\n", self.hub.name, self.connectionId, message.Event)
			continue
		}

		select {
		case self.hub.broadcast <- &inbound{
			from:         self,
			messageBytes: messageBytes,
			message:      message,
		}:
		case <-self.hub.ctx.Done():
			return
		}
	}
}

func (self *member) writePump() {
	defer self.conn.Close()

	for {
		select {
		case messageBytes, ok := <-self.send:
			if !ok {
				self.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			self.conn.SetWriteDeadline(time.Now().Add(self.hub.settings.WriteTimeout))
			if err := self.conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				glog.V(1).Infof("[hub]%s ->%s error = %s\n", self.hub.name, self.connectionId, err)
				return
			}
		case <-time.After(self.hub.settings.PingTimeout):
			self.conn.SetWriteDeadline(time.Now().Add(self.hub.settings.WriteTimeout))
			if err := self.conn.WriteMessage(websocket.TextMessage, make([]byte, 0)); err != nil {
				return
			}
		}
	}
}
