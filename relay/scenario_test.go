package relay

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/inklet-dev/inklet/board"
)

// Full client-to-client loop over a live relay: draw on one client,
// observe on the other, no echo anywhere.
func TestScenarioTwoClients(t *testing.T) {
	_, ts := testServer(t, DefaultServerSettings())
	ctx := context.Background()

	storeA := board.NewSceneStore()
	sessionA, err := board.NewSessionWithDefaults(ctx, storeA, wsUrl(ts, ""), "scenario", "")
	assert.Equal(t, err, nil)
	defer sessionA.Close()

	// track everything A broadcasts
	var outboundA []board.Mutation
	unsubA := storeA.AddMutationCallback(func(mutation board.Mutation) {
		if mutation.Origin == board.OriginUser {
			outboundA = append(outboundA, mutation)
		}
	})
	defer unsubA()

	waitFor(t, 5*time.Second, func() bool {
		_, connected := sessionA.ConnectionId()
		return connected
	})
	connectionIdA, _ := sessionA.ConnectionId()
	assert.NotEqual(t, connectionIdA, "")

	storeB := board.NewSceneStore()
	sessionB, err := board.NewSessionWithDefaults(ctx, storeB, wsUrl(ts, ""), "scenario", "")
	assert.Equal(t, err, nil)
	defer sessionB.Close()

	waitFor(t, 5*time.Second, func() bool {
		_, connected := sessionB.ConnectionId()
		return connected
	})

	// the two ephemeral connection ids are distinct
	connectionIdB, _ := sessionB.ConnectionId()
	assert.NotEqual(t, connectionIdA, connectionIdB)

	// the user draws a rectangle on A; the identity is auto-assigned
	identity, added := storeA.Add(board.SceneObject{
		Attrs: board.AttributeBag{
			"type": "rect", "left": 10.0, "top": 10.0,
			"width": 50.0, "height": 30.0,
		},
	}, board.OriginUser)
	assert.Equal(t, added, true)
	assert.NotEqual(t, identity, "")

	// B instantiates it without re-emitting
	waitFor(t, 5*time.Second, func() bool {
		return storeB.Contains(identity)
	})
	objectB, _ := storeB.Object(identity)
	assert.Equal(t, objectB.Attrs["width"], 50.0)

	// B drags the rectangle; A applies the move without re-broadcast
	storeB.Modify(identity, board.AttributeBag{
		"type": "rect", "left": 40.0, "top": 40.0,
		"width": 50.0, "height": 30.0,
	}, board.OriginUser)

	waitFor(t, 5*time.Second, func() bool {
		objectA, ok := storeA.Object(identity)
		return ok && objectA.Attrs["left"] == 40.0
	})

	// no duplicates anywhere, and A emitted exactly its own one add
	assert.Equal(t, storeA.Len(), 1)
	assert.Equal(t, storeB.Len(), 1)
	assert.Equal(t, len(outboundA), 1)
	assert.Equal(t, outboundA[0].Kind, board.MutationAdd)
}

func TestScenarioClearPropagates(t *testing.T) {
	_, ts := testServer(t, DefaultServerSettings())
	ctx := context.Background()

	storeA := board.NewSceneStore()
	sessionA, err := board.NewSessionWithDefaults(ctx, storeA, wsUrl(ts, ""), "clear", "")
	assert.Equal(t, err, nil)
	defer sessionA.Close()

	storeB := board.NewSceneStore()
	sessionB, err := board.NewSessionWithDefaults(ctx, storeB, wsUrl(ts, ""), "clear", "")
	assert.Equal(t, err, nil)
	defer sessionB.Close()

	waitFor(t, 5*time.Second, func() bool {
		_, connectedA := sessionA.ConnectionId()
		_, connectedB := sessionB.ConnectionId()
		return connectedA && connectedB
	})

	identity, _ := storeA.Add(board.SceneObject{
		Attrs: board.AttributeBag{"type": "path"},
	}, board.OriginUser)
	waitFor(t, 5*time.Second, func() bool {
		return storeB.Contains(identity)
	})

	// a user-triggered clear is a genuine local action and broadcasts
	storeB.Clear(board.OriginUser)
	waitFor(t, 5*time.Second, func() bool {
		return storeA.Len() == 0
	})
	assert.Equal(t, storeB.Len(), 0)
}

func TestScenarioRejoinCorrectsStaleReplica(t *testing.T) {
	_, ts := testServer(t, DefaultServerSettings())
	ctx := context.Background()

	storeA := board.NewSceneStore()
	sessionA, err := board.NewSessionWithDefaults(ctx, storeA, wsUrl(ts, ""), "rejoin", "")
	assert.Equal(t, err, nil)

	storeB := board.NewSceneStore()
	sessionB, err := board.NewSessionWithDefaults(ctx, storeB, wsUrl(ts, ""), "rejoin", "")
	assert.Equal(t, err, nil)
	defer sessionB.Close()

	waitFor(t, 5*time.Second, func() bool {
		_, connectedA := sessionA.ConnectionId()
		_, connectedB := sessionB.ConnectionId()
		return connectedA && connectedB
	})

	identity, _ := storeA.Add(board.SceneObject{
		Attrs: board.AttributeBag{"type": "rect", "left": 10.0},
	}, board.OriginUser)
	waitFor(t, 5*time.Second, func() bool {
		return storeB.Contains(identity)
	})

	// A goes away; its replica goes stale while B keeps editing
	sessionA.Close()
	storeB.Modify(identity, board.AttributeBag{"type": "rect", "left": 99.0}, board.OriginUser)
	extraIdentity, _ := storeB.Add(board.SceneObject{
		Attrs: board.AttributeBag{"type": "line"},
	}, board.OriginUser)

	// rejoining on the same store gets a fresh snapshot that corrects
	// the stale copy
	sessionA2, err := board.NewSessionWithDefaults(ctx, storeA, wsUrl(ts, ""), "rejoin", "")
	assert.Equal(t, err, nil)
	defer sessionA2.Close()

	waitFor(t, 5*time.Second, func() bool {
		objectA, ok := storeA.Object(identity)
		return ok && objectA.Attrs["left"] == 99.0 && storeA.Contains(extraIdentity)
	})
	assert.Equal(t, storeA.Len(), 2)
}

func TestScenarioPersistenceAcrossHub(t *testing.T) {
	// a bolt-backed relay restores the scene for a fresh hub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewMemorySessionStore()
	assert.Equal(t, store.Save("persist", testScene()), nil)

	hub := NewHub(ctx, "persist", store, nil, DefaultHubSettings())
	defer hub.Close()

	objects := hub.Objects()
	assert.Equal(t, len(objects), 2)
	assert.Equal(t, objects[0].Identity, "r1")
}
