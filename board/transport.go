package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// RelayTransport is a thin session-scoped channel to the relay over a
// websocket. It opens the connection, surfaces the connected signal
// with the relay-assigned ephemeral connection id, routes inbound
// messages to receive callbacks, and accepts outbound messages fire
// and forget. There is no retry or backoff here; reconnect policy
// belongs to the surrounding application, which opens a fresh
// transport (and gets a fresh snapshot) to rejoin.
//
// An empty text frame is a ping in both directions.

type RelayTransportSettings struct {
	WsHandshakeTimeout time.Duration
	AckTimeout         time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	SendBufferSize     int
}

func DefaultRelayTransportSettings() *RelayTransportSettings {
	return &RelayTransportSettings{
		WsHandshakeTimeout: 2 * time.Second,
		AckTimeout:         5 * time.Second,
		PingTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        30 * time.Second,
		SendBufferSize:     32,
	}
}

// ConnectFunction receives connection state changes. The connection id
// is the relay-assigned ephemeral id, presentation-only, and empty
// when not connected.
type ConnectFunction func(connected bool, connectionId string)

// ReceiveFunction receives one inbound wire message.
type ReceiveFunction func(message *Message)

type RelayTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	relayUrl string
	settings *RelayTransportSettings

	send chan []byte

	connectCallbacks *CallbackList[ConnectFunction]
	receiveCallbacks *CallbackList[ReceiveFunction]

	startOnce sync.Once

	stateMutex   sync.Mutex
	connected    bool
	connectionId string
}

func NewRelayTransportWithDefaults(ctx context.Context, relayUrl string) *RelayTransport {
	return NewRelayTransport(ctx, relayUrl, DefaultRelayTransportSettings())
}

// NewRelayTransport prepares a transport without opening it. Register
// callbacks, then Start: nothing inbound is delivered before the first
// receive callback is in place.
func NewRelayTransport(ctx context.Context, relayUrl string, settings *RelayTransportSettings) *RelayTransport {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &RelayTransport{
		ctx:              cancelCtx,
		cancel:           cancel,
		relayUrl:         relayUrl,
		settings:         settings,
		send:             make(chan []byte, settings.SendBufferSize),
		connectCallbacks: NewCallbackList[ConnectFunction](),
		receiveCallbacks: NewCallbackList[ReceiveFunction](),
	}
}

// Start opens the connection. Calling Start more than once has no
// effect.
func (self *RelayTransport) Start() {
	self.startOnce.Do(func() {
		go self.run()
	})
}

func (self *RelayTransport) run() {
	defer self.cancel()

	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.WsHandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(self.ctx, self.relayUrl, nil)
	if err != nil {
		glog.Infof("[t]dial error = %s\n", err)
		return
	}
	defer ws.Close()

	connectionId, err := self.readAck(ws)
	if err != nil {
		glog.Infof("[t]ack error = %s\n", err)
		return
	}

	self.setConnected(true, connectionId)
	defer self.setConnected(false, "")

	handleCtx, handleCancel := context.WithCancel(self.ctx)
	defer handleCancel()

	go func() {
		defer handleCancel()

		for {
			select {
			case <-handleCtx.Done():
				return
			case message, ok := <-self.send:
				if !ok {
					return
				}
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
					glog.Infof("[ts]%s-> error = %s\n", connectionId, err)
					return
				}
				glog.V(2).Infof("[ts]%s->\n", connectionId)
			case <-time.After(self.settings.PingTimeout):
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, make([]byte, 0)); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer handleCancel()

		for {
			select {
			case <-handleCtx.Done():
				return
			default:
			}

			ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
			_, messageBytes, err := ws.ReadMessage()
			if err != nil {
				glog.Infof("[tr]%s<- error = %s\n", connectionId, err)
				return
			}
			if len(messageBytes) == 0 {
				// ping
				glog.V(2).Infof("[tr]ping %s<-\n", connectionId)
				continue
			}

			message, err := DecodeMessage(messageBytes)
			if err != nil {
				// a hardened peer never crashes on a bad message
				glog.Infof("[tr]%s<- drop malformed = %s\n", connectionId, err)
				continue
			}
			if message.Event == MessageConnectAck {
				glog.V(1).Infof("[tr]%s<- duplicate ack\n", connectionId)
				continue
			}
			glog.V(2).Infof("[tr]%s<- %s\n", connectionId, message.Event)
			self.receive(message)
		}
	}()

	select {
	case <-handleCtx.Done():
	}
}

// readAck waits for the relay's connect acknowledgment, which carries
// the ephemeral connection id assigned to this connection.
func (self *RelayTransport) readAck(ws *websocket.Conn) (string, error) {
	deadline := time.Now().Add(self.settings.AckTimeout)
	for {
		ws.SetReadDeadline(deadline)
		_, messageBytes, err := ws.ReadMessage()
		if err != nil {
			return "", err
		}
		if len(messageBytes) == 0 {
			continue
		}
		message, err := DecodeMessage(messageBytes)
		if err != nil {
			return "", err
		}
		if message.Event != MessageConnectAck {
			return "", fmt.Errorf("expected %s, got %s", MessageConnectAck, message.Event)
		}
		return message.ConnectionId, nil
	}
}

// Send accepts one outbound message, fire and forget. When the buffer
// is full or the transport is down the message is silently lost, which
// matches the delivery model: no acknowledgment, no retry.
func (self *RelayTransport) Send(message *Message) bool {
	messageBytes, err := EncodeMessage(message)
	if err != nil {
		glog.Infof("[ts]encode error = %s\n", err)
		return false
	}
	select {
	case <-self.ctx.Done():
		return false
	default:
	}
	select {
	case self.send <- messageBytes:
		return true
	default:
		glog.V(1).Infof("[ts]drop %s, buffer full\n", message.Event)
		return false
	}
}

// AddConnectCallback registers a connection state listener and returns
// its unsubscribe function. If the transport is already connected the
// callback fires immediately with the current state.
func (self *RelayTransport) AddConnectCallback(connectCallback ConnectFunction) func() {
	unsub := self.connectCallbacks.Add(connectCallback)
	if connectionId, ok := self.ConnectionId(); ok {
		connectCallback(true, connectionId)
	}
	return unsub
}

// AddReceiveCallback registers an inbound message listener and returns
// its unsubscribe function.
func (self *RelayTransport) AddReceiveCallback(receiveCallback ReceiveFunction) func() {
	return self.receiveCallbacks.Add(receiveCallback)
}

// ConnectionId returns the relay-assigned ephemeral connection id
// while connected. The id is presentation-only and is not an object
// identity.
func (self *RelayTransport) ConnectionId() (string, bool) {
	self.stateMutex.Lock()
	defer self.stateMutex.Unlock()
	return self.connectionId, self.connected
}

func (self *RelayTransport) Done() <-chan struct{} {
	return self.ctx.Done()
}

func (self *RelayTransport) setConnected(connected bool, connectionId string) {
	self.stateMutex.Lock()
	self.connected = connected
	self.connectionId = connectionId
	self.stateMutex.Unlock()

	for _, connectCallback := range self.connectCallbacks.Get() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					glog.Infof("[t]connect callback panic = %v\n", r)
				}
			}()
			connectCallback(connected, connectionId)
		}()
	}
}

func (self *RelayTransport) receive(message *Message) {
	for _, receiveCallback := range self.receiveCallbacks.Get() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					glog.Infof("[tr]receive callback panic = %v\n", r)
				}
			}()
			receiveCallback(message)
		}()
	}
}

// Close tears down the connection and releases every registered
// listener. Messages arriving after close are dropped.
func (self *RelayTransport) Close() {
	self.cancel()
	self.connectCallbacks.Clear()
	self.receiveCallbacks.Clear()
}
