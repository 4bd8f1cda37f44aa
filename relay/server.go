package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/maps"
)

const DefaultSessionName = "default"

type ServerSettings struct {
	Hub *HubSettings

	// AuthKey enables join token verification when non-empty.
	AuthKey []byte
}

func DefaultServerSettings() *ServerSettings {
	return &ServerSettings{
		Hub: DefaultHubSettings(),
	}
}

// Server upgrades websocket connections and routes each into its
// session hub. Hubs are created on first join and live for the server
// lifetime.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	store    SessionStore
	bridge   *RedisBridge
	settings *ServerSettings

	upgrader websocket.Upgrader

	mutex sync.Mutex
	hubs  map[string]*Hub
}

func NewServerWithDefaults(ctx context.Context, store SessionStore) *Server {
	return NewServer(ctx, store, nil, DefaultServerSettings())
}

func NewServer(
	ctx context.Context,
	store SessionStore,
	bridge *RedisBridge,
	settings *ServerSettings,
) *Server {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Server{
		ctx:      cancelCtx,
		cancel:   cancel,
		store:    store,
		bridge:   bridge,
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		hubs: map[string]*Hub{},
	}
}

func (self *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", self.handleWs)
	mux.HandleFunc("/status", self.handleStatus)
	return mux
}

func (self *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	sessionName := r.URL.Query().Get("session")
	if sessionName == "" {
		sessionName = DefaultSessionName
	}

	if 0 < len(self.settings.AuthKey) {
		token := r.URL.Query().Get("token")
		tokenSession, err := VerifyJoinToken(self.settings.AuthKey, token)
		if err != nil {
			glog.Infof("[relay]join %s rejected = %s\n", sessionName, err)
			http.Error(w, "invalid join token", http.StatusForbidden)
			return
		}
		if tokenSession != sessionName {
			glog.Infof("[relay]join %s rejected, token is for %s\n", sessionName, tokenSession)
			http.Error(w, "token session mismatch", http.StatusForbidden)
			return
		}
	}

	conn, err := self.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[relay]upgrade error = %s\n", err)
		return
	}

	hub := self.hub(sessionName)
	m := newMember(hub, conn, uuid.NewString())
	select {
	case hub.register <- m:
	case <-hub.ctx.Done():
		conn.Close()
		return
	}
	go m.writePump()
	go m.readPump()
}

func (self *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	self.mutex.Lock()
	sessions := maps.Keys(self.hubs)
	self.mutex.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sessions": sessions,
	})
}

func (self *Server) hub(sessionName string) *Hub {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	hub, ok := self.hubs[sessionName]
	if !ok {
		hub = NewHub(self.ctx, sessionName, self.store, self.bridge, self.settings.Hub)
		self.hubs[sessionName] = hub
	}
	return hub
}

// Hub returns the live hub for a session, if any.
func (self *Server) Hub(sessionName string) (*Hub, bool) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	hub, ok := self.hubs[sessionName]
	return hub, ok
}

func (self *Server) Close() {
	self.cancel()
	self.mutex.Lock()
	defer self.mutex.Unlock()
	for _, hub := range self.hubs {
		hub.Close()
	}
}
