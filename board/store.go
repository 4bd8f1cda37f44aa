package board

import (
	"sync"

	"github.com/golang/glog"
)

// SceneStore is the client's local scene replica: an ordered object
// list keyed by identity. Each client exclusively owns its store; there
// is no shared memory across clients. All mutation paths serialize
// under one lock, which stands in for the single logical thread the
// sync model assumes. Mutation callbacks fire after the change, outside
// the lock, in mutation order.
type SceneStore struct {
	identity func() string

	mutex   sync.Mutex
	order   []string
	objects map[string]*SceneObject

	mutationCallbacks *CallbackList[MutationFunction]
}

func NewSceneStore() *SceneStore {
	return &SceneStore{
		identity:          NewIdentity,
		objects:           map[string]*SceneObject{},
		mutationCallbacks: NewCallbackList[MutationFunction](),
	}
}

// AddMutationCallback registers a mutation listener and returns its
// unsubscribe function.
func (self *SceneStore) AddMutationCallback(mutationCallback MutationFunction) func() {
	return self.mutationCallbacks.Add(mutationCallback)
}

// Add inserts an object. If the object has no identity one is assigned
// first, so the object always has a non-empty identity before any
// listener sees it. Add is idempotent on identity: inserting an
// identity that already exists is a no-op, which makes duplicate and
// redelivered add events harmless. Returns the identity and whether
// the object was inserted.
func (self *SceneStore) Add(object SceneObject, origin Origin) (string, bool) {
	self.mutex.Lock()
	if object.Identity == "" {
		object.Identity = self.identity()
	}
	if _, ok := self.objects[object.Identity]; ok {
		self.mutex.Unlock()
		glog.V(2).Infof("[store]add %s already present\n", object.Identity)
		return object.Identity, false
	}
	stored := object.Clone()
	self.objects[stored.Identity] = &stored
	self.order = append(self.order, stored.Identity)
	self.mutex.Unlock()

	self.notify(Mutation{
		Kind:     MutationAdd,
		Origin:   origin,
		Identity: stored.Identity,
		Attrs:    stored.Attrs.Clone(),
	})
	return stored.Identity, true
}

// Modify overwrites the object's full attribute bag. There is no
// per-field merge; the last applied modify wins whole. An unknown
// identity is a benign race and a no-op.
func (self *SceneStore) Modify(identity string, attrs AttributeBag, origin Origin) bool {
	self.mutex.Lock()
	object, ok := self.objects[identity]
	if !ok {
		self.mutex.Unlock()
		glog.V(2).Infof("[store]modify %s not present\n", identity)
		return false
	}
	object.Attrs = attrs.Clone()
	self.mutex.Unlock()

	self.notify(Mutation{
		Kind:     MutationModify,
		Origin:   origin,
		Identity: identity,
		Attrs:    attrs.Clone(),
	})
	return true
}

// Remove deletes by identity. Absent is a no-op.
func (self *SceneStore) Remove(identity string, origin Origin) bool {
	self.mutex.Lock()
	object, ok := self.objects[identity]
	if !ok {
		self.mutex.Unlock()
		glog.V(2).Infof("[store]remove %s not present\n", identity)
		return false
	}
	delete(self.objects, identity)
	for i, orderedIdentity := range self.order {
		if orderedIdentity == identity {
			self.order = append(self.order[:i], self.order[i+1:]...)
			break
		}
	}
	attrs := object.Attrs
	self.mutex.Unlock()

	self.notify(Mutation{
		Kind:     MutationRemove,
		Origin:   origin,
		Identity: identity,
		Attrs:    attrs.Clone(),
	})
	return true
}

// Clear removes every object regardless of identity. Returns the
// number of objects removed.
func (self *SceneStore) Clear(origin Origin) int {
	self.mutex.Lock()
	n := len(self.order)
	self.order = nil
	self.objects = map[string]*SceneObject{}
	self.mutex.Unlock()

	self.notify(Mutation{
		Kind:   MutationClear,
		Origin: origin,
	})
	return n
}

// Replace atomically swaps the entire object set for the given
// objects, in order. This is the snapshot path: listeners see a single
// MutationReplace, never per-object mutations, so a bulk load is never
// mistaken for incremental edits. Objects without a valid identity are
// skipped.
func (self *SceneStore) Replace(objects []SceneObject) {
	self.mutex.Lock()
	self.order = nil
	self.objects = map[string]*SceneObject{}
	for _, object := range objects {
		if !ValidIdentity(object.Identity) {
			glog.Infof("[store]replace drop object with empty identity\n")
			continue
		}
		if _, ok := self.objects[object.Identity]; ok {
			continue
		}
		stored := object.Clone()
		self.objects[stored.Identity] = &stored
		self.order = append(self.order, stored.Identity)
	}
	self.mutex.Unlock()

	self.notify(Mutation{
		Kind:   MutationReplace,
		Origin: OriginExternal,
	})
}

// Object returns a copy of the object state for the identity.
func (self *SceneStore) Object(identity string) (SceneObject, bool) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	object, ok := self.objects[identity]
	if !ok {
		return SceneObject{}, false
	}
	return object.Clone(), true
}

func (self *SceneStore) Contains(identity string) bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	_, ok := self.objects[identity]
	return ok
}

// Objects returns a copy of the scene in insertion order.
func (self *SceneStore) Objects() []SceneObject {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	out := make([]SceneObject, 0, len(self.order))
	for _, identity := range self.order {
		out = append(out, self.objects[identity].Clone())
	}
	return out
}

// Identities returns the identity set in insertion order.
func (self *SceneStore) Identities() []string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	out := make([]string, len(self.order))
	copy(out, self.order)
	return out
}

func (self *SceneStore) Len() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.order)
}

// Close releases every registered listener. The object set is left
// intact; a stale replica is corrected by the next session's snapshot.
func (self *SceneStore) Close() {
	self.mutationCallbacks.Clear()
}

func (self *SceneStore) notify(mutation Mutation) {
	for _, mutationCallback := range self.mutationCallbacks.Get() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					glog.Infof("[store]mutation callback panic = %v\n", r)
				}
			}()
			mutationCallback(mutation)
		}()
	}
}
