package board

import (
	"github.com/golang/glog"
)

// SendFunction accepts one outbound wire message, fire and forget.
// The return reports whether the message was accepted for send.
type SendFunction func(message *Message) bool

// ChangeObserver watches the store and converts user-caused mutations
// into outbound sync events: exactly one message per OriginUser
// mutation, in local mutation order. Externally-sourced mutations and
// snapshot loads never emit, which is what breaks the echo loop.
type ChangeObserver struct {
	store *SceneStore
	send  SendFunction

	unsub func()
}

func NewChangeObserver(store *SceneStore, send SendFunction) *ChangeObserver {
	observer := &ChangeObserver{
		store: store,
		send:  send,
	}
	observer.unsub = store.AddMutationCallback(observer.mutation)
	return observer
}

func (self *ChangeObserver) mutation(mutation Mutation) {
	if mutation.Origin != OriginUser {
		return
	}

	var message *Message
	switch mutation.Kind {
	case MutationAdd:
		message = &Message{
			Event:    MessageObjectAdded,
			Identity: mutation.Identity,
			Attrs:    mutation.Attrs,
		}
	case MutationModify:
		message = &Message{
			Event:    MessageObjectModified,
			Identity: mutation.Identity,
			Attrs:    mutation.Attrs,
		}
	case MutationRemove:
		message = &Message{
			Event:    MessageObjectRemoved,
			Identity: mutation.Identity,
			Attrs:    mutation.Attrs,
		}
	case MutationClear:
		// a user-triggered clear is a genuine local action
		message = &Message{
			Event: MessageCanvasClear,
		}
	case MutationReplace:
		// bulk initial load, not an incremental delta
		return
	default:
		return
	}

	if !ValidIdentity(message.Identity) && message.ObjectEvent() {
		// the store assigns identities on add, so this does not happen
		glog.Infof("[observer]drop %s without identity\n", message.Event)
		return
	}
	if !self.send(message) {
		glog.V(1).Infof("[observer]send not accepted %s %s\n", message.Event, message.Identity)
	}
}

// Close unsubscribes from the store. Pending mutations after close are
// not observed.
func (self *ChangeObserver) Close() {
	self.unsub()
}
