package relay

import (
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/inklet-dev/inklet/board"
)

func testScene() []board.SceneObject {
	return []board.SceneObject{
		{Identity: "r1", Attrs: board.AttributeBag{"type": "rect", "left": 10.0}},
		{Identity: "p1", Attrs: board.AttributeBag{"type": "path"}},
	}
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	objects, err := store.Load("s1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(objects), 0)

	assert.Equal(t, store.Save("s1", testScene()), nil)

	objects, err = store.Load("s1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(objects), 2)
	assert.Equal(t, objects[0].Identity, "r1")

	// the stored copy does not alias the caller's objects
	objects[0].Attrs["left"] = 99.0
	reloaded, _ := store.Load("s1")
	assert.Equal(t, reloaded[0].Attrs["left"], 10.0)
}

func TestBoltSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inklet.db")

	store, err := NewBoltSessionStore(path)
	assert.Equal(t, err, nil)

	assert.Equal(t, store.Save("s1", testScene()), nil)
	assert.Equal(t, store.Close(), nil)

	// the scene survives a reopen
	store, err = NewBoltSessionStore(path)
	assert.Equal(t, err, nil)
	defer store.Close()

	objects, err := store.Load("s1")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(objects), 2)
	assert.Equal(t, objects[0].Identity, "r1")
	assert.Equal(t, objects[0].Attrs["type"], "rect")
	assert.Equal(t, objects[1].Identity, "p1")

	missing, err := store.Load("other")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(missing), 0)
}
