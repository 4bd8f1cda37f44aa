package relay

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"

	"github.com/inklet-dev/inklet/board"
)

func TestJoinTokenRoundTrip(t *testing.T) {
	key := []byte("test-key")

	token, err := MintJoinToken(key, "s1", time.Minute)
	assert.Equal(t, err, nil)

	sessionName, err := VerifyJoinToken(key, token)
	assert.Equal(t, err, nil)
	assert.Equal(t, sessionName, "s1")
}

func TestJoinTokenWrongKey(t *testing.T) {
	token, err := MintJoinToken([]byte("key-a"), "s1", time.Minute)
	assert.Equal(t, err, nil)

	_, err = VerifyJoinToken([]byte("key-b"), token)
	assert.NotEqual(t, err, nil)
}

func TestJoinTokenExpired(t *testing.T) {
	key := []byte("test-key")
	token, err := MintJoinToken(key, "s1", -time.Minute)
	assert.Equal(t, err, nil)

	_, err = VerifyJoinToken(key, token)
	assert.NotEqual(t, err, nil)
}

func TestJoinTokenGarbage(t *testing.T) {
	_, err := VerifyJoinToken([]byte("test-key"), "")
	assert.NotEqual(t, err, nil)

	_, err = VerifyJoinToken([]byte("test-key"), "not.a.token")
	assert.NotEqual(t, err, nil)
}

func TestServerRequiresToken(t *testing.T) {
	key := []byte("test-key")
	settings := DefaultServerSettings()
	settings.AuthKey = key
	_, ts := testServer(t, settings)

	// no token
	_, response, err := websocket.DefaultDialer.Dial(wsUrl(ts, "session=s1"), nil)
	assert.NotEqual(t, err, nil)
	assert.Equal(t, response.StatusCode, http.StatusForbidden)

	// token for a different session
	otherToken, _ := MintJoinToken(key, "s2", time.Minute)
	_, response, err = websocket.DefaultDialer.Dial(wsUrl(ts, "session=s1&token="+otherToken), nil)
	assert.NotEqual(t, err, nil)
	assert.Equal(t, response.StatusCode, http.StatusForbidden)

	// valid token
	token, _ := MintJoinToken(key, "s1", time.Minute)
	conn, _, err := websocket.DefaultDialer.Dial(wsUrl(ts, "session=s1&token="+token), nil)
	assert.Equal(t, err, nil)
	defer conn.Close()

	ack := readMessage(t, conn, 5*time.Second)
	assert.Equal(t, ack.Event, board.MessageConnectAck)
}

func TestSessionUrlCarriesToken(t *testing.T) {
	u, err := board.SessionUrl("ws://relay.example/ws", "s1", "tok")
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.Contains(u, "session=s1"), true)
	assert.Equal(t, strings.Contains(u, "token=tok"), true)
}
