package board

import (
	"github.com/golang/glog"
)

// RemoteApplyEngine applies inbound events and snapshots to the local
// store. Every resulting mutation is tagged OriginExternal, so the
// change observer never re-broadcasts it. All handlers are safe under
// duplicate and out-of-order delivery:
//
//   - added for a known identity: no-op
//   - modified/removed for an unknown identity: no-op (benign race;
//     a modified arriving before its added is dropped, not buffered)
//   - snapshot: full atomic replacement
//
// No failure here is fatal. A dropped event leaves at most one object
// stale until the next snapshot.
type RemoteApplyEngine struct {
	store *SceneStore
}

func NewRemoteApplyEngine(store *SceneStore) *RemoteApplyEngine {
	return &RemoteApplyEngine{
		store: store,
	}
}

func (self *RemoteApplyEngine) Apply(message *Message) {
	switch message.Event {
	case MessageObjectAdded:
		if !ValidIdentity(message.Identity) || message.Attrs == nil {
			glog.Infof("[apply]drop malformed %s\n", message.Event)
			return
		}
		_, added := self.store.Add(SceneObject{
			Identity: message.Identity,
			Attrs:    message.Attrs,
		}, OriginExternal)
		if !added {
			glog.V(2).Infof("[apply]duplicate added %s\n", message.Identity)
		}
	case MessageObjectModified:
		if !ValidIdentity(message.Identity) || message.Attrs == nil {
			glog.Infof("[apply]drop malformed %s\n", message.Event)
			return
		}
		// whole-object last-writer-wins, no per-field merge
		if !self.store.Modify(message.Identity, message.Attrs, OriginExternal) {
			glog.V(2).Infof("[apply]modified unknown %s\n", message.Identity)
		}
	case MessageObjectRemoved:
		if !ValidIdentity(message.Identity) {
			glog.Infof("[apply]drop malformed %s\n", message.Event)
			return
		}
		if !self.store.Remove(message.Identity, OriginExternal) {
			glog.V(2).Infof("[apply]removed unknown %s\n", message.Identity)
		}
	case MessageCanvasClear:
		self.store.Clear(OriginExternal)
	case MessageObjectSync:
		self.store.Replace(message.Objects)
	default:
		glog.V(1).Infof("[apply]drop unknown event %s\n", message.Event)
	}
}
