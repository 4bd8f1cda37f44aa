package board

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

type messageRecorder struct {
	messages []*Message
}

func (self *messageRecorder) send(message *Message) bool {
	self.messages = append(self.messages, message)
	return true
}

func TestObserverEmitsUserMutations(t *testing.T) {
	store := NewSceneStore()
	recorder := &messageRecorder{}
	observer := NewChangeObserver(store, recorder.send)
	defer observer.Close()

	identity, _ := store.Add(SceneObject{
		Attrs: AttributeBag{"type": "rect", "left": 10.0},
	}, OriginUser)
	store.Modify(identity, AttributeBag{"type": "rect", "left": 40.0}, OriginUser)
	store.Remove(identity, OriginUser)
	store.Clear(OriginUser)

	assert.Equal(t, len(recorder.messages), 4)

	assert.Equal(t, recorder.messages[0].Event, MessageObjectAdded)
	// every transmitted event carries the identity
	assert.Equal(t, recorder.messages[0].Identity, identity)
	assert.Equal(t, recorder.messages[0].Attrs["left"], 10.0)

	assert.Equal(t, recorder.messages[1].Event, MessageObjectModified)
	assert.Equal(t, recorder.messages[1].Attrs["left"], 40.0)

	assert.Equal(t, recorder.messages[2].Event, MessageObjectRemoved)
	assert.Equal(t, recorder.messages[2].Identity, identity)

	assert.Equal(t, recorder.messages[3].Event, MessageCanvasClear)
}

func TestObserverSuppressesExternalMutations(t *testing.T) {
	store := NewSceneStore()
	recorder := &messageRecorder{}
	observer := NewChangeObserver(store, recorder.send)
	defer observer.Close()

	engine := NewRemoteApplyEngine(store)
	engine.Apply(&Message{
		Event:    MessageObjectAdded,
		Identity: "r1",
		Attrs:    AttributeBag{"type": "rect"},
	})
	engine.Apply(&Message{
		Event:    MessageObjectModified,
		Identity: "r1",
		Attrs:    AttributeBag{"left": 4.0},
	})
	engine.Apply(&Message{Event: MessageCanvasClear})

	// remote-caused mutations never echo back out
	assert.Equal(t, len(recorder.messages), 0)
}

func TestObserverSuppressesSnapshot(t *testing.T) {
	store := NewSceneStore()
	recorder := &messageRecorder{}
	observer := NewChangeObserver(store, recorder.send)
	defer observer.Close()

	store.Replace([]SceneObject{
		{Identity: "a", Attrs: AttributeBag{"type": "rect"}},
		{Identity: "b", Attrs: AttributeBag{"type": "line"}},
	})

	// a snapshot is a bulk initial load, not an incremental delta
	assert.Equal(t, len(recorder.messages), 0)
}

func TestObserverProgrammaticChangesSuppressed(t *testing.T) {
	// the gesture layer marks objects it creates for non-user reasons
	// by mutating with OriginExternal
	store := NewSceneStore()
	recorder := &messageRecorder{}
	observer := NewChangeObserver(store, recorder.send)
	defer observer.Close()

	store.Add(SceneObject{
		Identity: "cursor-preview",
		Attrs:    AttributeBag{"type": "rect"},
	}, OriginExternal)

	assert.Equal(t, len(recorder.messages), 0)
}

func TestObserverCloseStopsEmission(t *testing.T) {
	store := NewSceneStore()
	recorder := &messageRecorder{}
	observer := NewChangeObserver(store, recorder.send)

	store.Add(SceneObject{Attrs: AttributeBag{"type": "rect"}}, OriginUser)
	assert.Equal(t, len(recorder.messages), 1)

	observer.Close()
	store.Add(SceneObject{Attrs: AttributeBag{"type": "line"}}, OriginUser)
	assert.Equal(t, len(recorder.messages), 1)
}

func TestObserverExactlyOnePerMutation(t *testing.T) {
	store := NewSceneStore()
	recorder := &messageRecorder{}
	observer := NewChangeObserver(store, recorder.send)
	defer observer.Close()

	identity, _ := store.Add(SceneObject{Attrs: AttributeBag{"type": "path"}}, OriginUser)
	for i := 0; i < 10; i += 1 {
		store.Modify(identity, AttributeBag{"step": float64(i)}, OriginUser)
	}

	assert.Equal(t, len(recorder.messages), 11)
}
