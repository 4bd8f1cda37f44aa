package relay

import (
	"encoding/json"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/inklet-dev/inklet/board"
)

// SessionStore persists the authoritative object set per session so a
// relay restart does not lose scenes. Loads and saves are whole-scene;
// the relay saves after every applied event.
type SessionStore interface {
	Load(sessionName string) ([]board.SceneObject, error)
	Save(sessionName string, objects []board.SceneObject) error
	Close() error
}

type MemorySessionStore struct {
	mutex  sync.Mutex
	scenes map[string][]board.SceneObject
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		scenes: map[string][]board.SceneObject{},
	}
}

func (self *MemorySessionStore) Load(sessionName string) ([]board.SceneObject, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	objects := self.scenes[sessionName]
	out := make([]board.SceneObject, 0, len(objects))
	for _, object := range objects {
		out = append(out, object.Clone())
	}
	return out, nil
}

func (self *MemorySessionStore) Save(sessionName string, objects []board.SceneObject) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	stored := make([]board.SceneObject, 0, len(objects))
	for _, object := range objects {
		stored = append(stored, object.Clone())
	}
	self.scenes[sessionName] = stored
	return nil
}

func (self *MemorySessionStore) Close() error {
	return nil
}

var scenesBucket = []byte("scenes")

// BoltSessionStore keeps scenes in a bbolt file, one key per session.
// The stored encoding carries the identity as a first-class field on
// every object, same as the wire.
type BoltSessionStore struct {
	db *bbolt.DB
}

func NewBoltSessionStore(path string) (*BoltSessionStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(scenesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltSessionStore{
		db: db,
	}, nil
}

func (self *BoltSessionStore) Load(sessionName string) ([]board.SceneObject, error) {
	var objects []board.SceneObject
	err := self.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(scenesBucket).Get([]byte(sessionName))
		if b == nil {
			return nil
		}
		return json.Unmarshal(b, &objects)
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (self *BoltSessionStore) Save(sessionName string, objects []board.SceneObject) error {
	b, err := json.Marshal(objects)
	if err != nil {
		return err
	}
	return self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(scenesBucket).Put([]byte(sessionName), b)
	})
}

func (self *BoltSessionStore) Close() error {
	return self.db.Close()
}
