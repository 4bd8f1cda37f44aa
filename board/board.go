package board

import (
	"fmt"

	"golang.org/x/exp/maps"
)

// A board is a shared 2d scene of vector shapes and freehand strokes.
// Each client owns a full local replica of the scene (`SceneStore`) and
// converges with the other session members purely through event
// application. The sync core does not interpret geometry or style;
// objects carry an opaque attribute bag that is applied whole.

// AttributeBag is the opaque geometry/style state of one scene object.
// Values are json-compatible (string, float64, bool, nested maps/arrays).
// The sync core never looks inside the bag.
type AttributeBag map[string]any

func (self AttributeBag) Clone() AttributeBag {
	if self == nil {
		return nil
	}
	out := AttributeBag{}
	maps.Copy(out, self)
	return out
}

// SceneObject is one drawable primitive (path, rect, line, ellipse).
// Identity is assigned at creation and never reassigned. It is a
// mandatory first-class field of every serialization of the object,
// including the local persistence encoding.
type SceneObject struct {
	Identity string       `json:"identity"`
	Attrs    AttributeBag `json:"attrs"`
}

func (self SceneObject) Clone() SceneObject {
	return SceneObject{
		Identity: self.Identity,
		Attrs:    self.Attrs.Clone(),
	}
}

// Origin tags where a mutation came from. It travels with the mutation
// notification rather than being stored on the object, so transport
// bookkeeping never leaks into the object's persisted shape.
type Origin int

const (
	// OriginUser is a genuine local user action. These broadcast.
	OriginUser Origin = iota
	// OriginExternal covers remote event application, snapshot loads,
	// and programmatic changes the gesture layer makes for non-user
	// reasons. These never broadcast.
	OriginExternal
)

func (self Origin) String() string {
	switch self {
	case OriginUser:
		return "user"
	case OriginExternal:
		return "external"
	default:
		return fmt.Sprintf("origin(%d)", int(self))
	}
}

type MutationKind int

const (
	MutationAdd MutationKind = iota
	MutationModify
	MutationRemove
	MutationClear
	MutationReplace
)

func (self MutationKind) String() string {
	switch self {
	case MutationAdd:
		return "add"
	case MutationModify:
		return "modify"
	case MutationRemove:
		return "remove"
	case MutationClear:
		return "clear"
	case MutationReplace:
		return "replace"
	default:
		return fmt.Sprintf("mutation(%d)", int(self))
	}
}

// Mutation is one store change as seen by mutation callbacks.
// For MutationClear and MutationReplace, Identity and Attrs are empty.
// For MutationRemove, Attrs holds the removed object's last attributes.
type Mutation struct {
	Kind     MutationKind
	Origin   Origin
	Identity string
	Attrs    AttributeBag
}

// MutationFunction observes store changes. Callbacks run synchronously
// after the store mutation, outside the store lock.
type MutationFunction func(mutation Mutation)
