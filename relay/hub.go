package relay

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/inklet-dev/inklet/board"
)

// Hub is one shared session: it fans every object event out to all
// members except the sender, and keeps the authoritative object set by
// applying events as they pass through, so each new joiner gets exactly
// one object:sync snapshot carrying the current scene.

type HubSettings struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingTimeout    time.Duration
	SendBufferSize int
	MaxMessageSize int64
}

func DefaultHubSettings() *HubSettings {
	return &HubSettings{
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    30 * time.Second,
		PingTimeout:    5 * time.Second,
		SendBufferSize: 64,
		MaxMessageSize: 1 << 20,
	}
}

type inbound struct {
	from         *member
	messageBytes []byte
	message      *board.Message
}

type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc

	name     string
	settings *HubSettings

	// authoritative scene replica for this session
	scene  *board.SceneStore
	engine *board.RemoteApplyEngine

	store       SessionStore
	bridge      *RedisBridge
	unsubBridge func()

	register   chan *member
	unregister chan *member
	broadcast  chan *inbound
	fromBridge chan []byte
}

func NewHub(
	ctx context.Context,
	name string,
	store SessionStore,
	bridge *RedisBridge,
	settings *HubSettings,
) *Hub {
	cancelCtx, cancel := context.WithCancel(ctx)
	scene := board.NewSceneStore()
	hub := &Hub{
		ctx:        cancelCtx,
		cancel:     cancel,
		name:       name,
		settings:   settings,
		scene:      scene,
		engine:     board.NewRemoteApplyEngine(scene),
		store:      store,
		bridge:     bridge,
		register:   make(chan *member),
		unregister: make(chan *member),
		broadcast:  make(chan *inbound),
		fromBridge: make(chan []byte, settings.SendBufferSize),
	}

	if objects, err := store.Load(name); err != nil {
		glog.Infof("[hub]%s load error = %s\n", name, err)
	} else if 0 < len(objects) {
		scene.Replace(objects)
	}

	if bridge != nil {
		hub.unsubBridge = bridge.Subscribe(name, func(payload []byte) {
			select {
			case <-cancelCtx.Done():
			case hub.fromBridge <- payload:
			}
		})
	}

	go hub.run()
	return hub
}

func (self *Hub) run() {
	defer func() {
		if self.unsubBridge != nil {
			self.unsubBridge()
		}
	}()

	members := map[*member]bool{}

	for {
		select {
		case <-self.ctx.Done():
			for m := range members {
				close(m.send)
			}
			return
		case m := <-self.register:
			members[m] = true
			// the connect ack, then the one snapshot for this
			// connection, before any fan-out traffic
			m.queue(board.RequireEncodeMessage(&board.Message{
				Event:        board.MessageConnectAck,
				ConnectionId: m.connectionId,
			}))
			m.queue(board.RequireEncodeMessage(&board.Message{
				Event:   board.MessageObjectSync,
				Objects: self.scene.Objects(),
			}))
			glog.V(1).Infof("[hub]%s join %s, members=%d\n", self.name, m.connectionId, len(members))
		case m := <-self.unregister:
			if _, ok := members[m]; ok {
				delete(members, m)
				close(m.send)
			}
			glog.V(1).Infof("[hub]%s leave %s, members=%d\n", self.name, m.connectionId, len(members))
		case in := <-self.broadcast:
			self.apply(in.message)
			if self.bridge != nil {
				self.bridge.Publish(self.name, in.messageBytes)
			}
			// fan out to every member except the sender
			for m := range members {
				if m == in.from {
					continue
				}
				m.queue(in.messageBytes)
			}
		case payload := <-self.fromBridge:
			message, err := board.DecodeMessage(payload)
			if err != nil {
				glog.Infof("[hub]%s drop malformed bridge message = %s\n", self.name, err)
				continue
			}
			self.apply(message)
			for m := range members {
				m.queue(payload)
			}
		}
	}
}

// apply folds one event into the authoritative scene and persists the
// result. The event is fanned out regardless of whether it changed the
// scene; each client resolves races independently.
func (self *Hub) apply(message *board.Message) {
	self.engine.Apply(message)
	if err := self.store.Save(self.name, self.scene.Objects()); err != nil {
		glog.Infof("[hub]%s save error = %s\n", self.name, err)
	}
}

// Objects returns the authoritative object set.
func (self *Hub) Objects() []board.SceneObject {
	return self.scene.Objects()
}

func (self *Hub) Close() {
	self.cancel()
}
