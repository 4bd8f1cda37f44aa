package board

import (
	"context"
	"net/url"
	"sync"

	"github.com/golang/glog"
)

// Session joins a store to one shared relay session: it wires the
// change observer's outbound events into the transport and the
// transport's inbound events into the remote apply engine. One session
// is one connection; to rejoin after a disconnect, open a new session
// on the same store and the join snapshot corrects any staleness.

type SessionSettings struct {
	Transport *RelayTransportSettings
}

func DefaultSessionSettings() *SessionSettings {
	return &SessionSettings{
		Transport: DefaultRelayTransportSettings(),
	}
}

type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	store     *SceneStore
	observer  *ChangeObserver
	engine    *RemoteApplyEngine
	transport *RelayTransport

	unsubReceive func()

	snapshotMutex   sync.Mutex
	snapshotApplied bool
}

// SessionUrl builds the relay endpoint url for a named session with an
// optional join token.
func SessionUrl(relayUrl string, sessionName string, token string) (string, error) {
	u, err := url.Parse(relayUrl)
	if err != nil {
		return "", err
	}
	query := u.Query()
	query.Set("session", sessionName)
	if token != "" {
		query.Set("token", token)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func NewSessionWithDefaults(
	ctx context.Context,
	store *SceneStore,
	relayUrl string,
	sessionName string,
	token string,
) (*Session, error) {
	return NewSession(ctx, store, relayUrl, sessionName, token, DefaultSessionSettings())
}

func NewSession(
	ctx context.Context,
	store *SceneStore,
	relayUrl string,
	sessionName string,
	token string,
	settings *SessionSettings,
) (*Session, error) {
	sessionUrl, err := SessionUrl(relayUrl, sessionName, token)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	session := &Session{
		ctx:    cancelCtx,
		cancel: cancel,
		store:  store,
		engine: NewRemoteApplyEngine(store),
	}
	session.transport = NewRelayTransport(cancelCtx, sessionUrl, settings.Transport)
	session.unsubReceive = session.transport.AddReceiveCallback(session.receive)
	session.observer = NewChangeObserver(store, session.transport.Send)
	session.transport.Start()
	return session, nil
}

func (self *Session) receive(message *Message) {
	if message.Event == MessageObjectSync {
		// the join snapshot establishes the baseline exactly once per
		// connection
		self.snapshotMutex.Lock()
		applied := self.snapshotApplied
		self.snapshotApplied = true
		self.snapshotMutex.Unlock()
		if applied {
			glog.V(1).Infof("[session]drop repeat snapshot\n")
			return
		}
	}
	self.engine.Apply(message)
}

func (self *Session) Store() *SceneStore {
	return self.store
}

// ConnectionId returns the relay-assigned ephemeral id while
// connected. Display-only.
func (self *Session) ConnectionId() (string, bool) {
	return self.transport.ConnectionId()
}

func (self *Session) AddConnectCallback(connectCallback ConnectFunction) func() {
	return self.transport.AddConnectCallback(connectCallback)
}

// Done closes when the session's connection has ended for any reason.
func (self *Session) Done() <-chan struct{} {
	return self.transport.Done()
}

// Close tears down the connection and releases every listener the
// session registered. The store and its contents are left intact.
func (self *Session) Close() {
	self.observer.Close()
	self.unsubReceive()
	self.transport.Close()
	self.cancel()
}
