package board

import (
	"encoding/json"
	"fmt"
)

// Wire schema. Every message is one json object with an `event` tag.
// Object events flatten the attribute bag beside the identity:
//
//	{"event": "object:added", "identity": "r1", "type": "rect", "left": 10, ...}
//	{"event": "object:modified", "identity": "r1", "left": 40, "top": 40}
//	{"event": "object:removed", "identity": "r1", ...}
//	{"event": "canvas:clear"}
//	{"event": "object:sync", "objects": [{"identity": "r1", ...}, ...]}
//	{"event": "connect:ack", "connectionId": "..."}
//
// `event`, `identity`, `objects`, and `connectionId` are reserved keys;
// everything else on an object event is the attribute bag. Identity is
// a first-class field of the schema for every object, never an
// attribute.

const (
	MessageObjectAdded    = "object:added"
	MessageObjectModified = "object:modified"
	MessageObjectRemoved  = "object:removed"
	MessageCanvasClear    = "canvas:clear"
	MessageObjectSync     = "object:sync"
	MessageConnectAck     = "connect:ack"
)

const (
	wireKeyEvent        = "event"
	wireKeyIdentity     = "identity"
	wireKeyObjects      = "objects"
	wireKeyConnectionId = "connectionId"
)

// Message is one decoded wire message.
type Message struct {
	Event        string
	Identity     string
	Attrs        AttributeBag
	Objects      []SceneObject
	ConnectionId string
}

// ObjectEvent reports whether the message mutates a single object.
func (self *Message) ObjectEvent() bool {
	switch self.Event {
	case MessageObjectAdded, MessageObjectModified, MessageObjectRemoved:
		return true
	default:
		return false
	}
}

func EncodeMessage(message *Message) ([]byte, error) {
	switch message.Event {
	case MessageObjectAdded, MessageObjectModified, MessageObjectRemoved:
		if !ValidIdentity(message.Identity) {
			return nil, fmt.Errorf("%s requires an identity", message.Event)
		}
		out := map[string]any{}
		for key, value := range message.Attrs {
			out[key] = value
		}
		out[wireKeyEvent] = message.Event
		out[wireKeyIdentity] = message.Identity
		return json.Marshal(out)
	case MessageCanvasClear:
		return json.Marshal(map[string]any{
			wireKeyEvent: message.Event,
		})
	case MessageObjectSync:
		objects := make([]map[string]any, 0, len(message.Objects))
		for _, object := range message.Objects {
			if !ValidIdentity(object.Identity) {
				return nil, fmt.Errorf("%s requires an identity on every object", message.Event)
			}
			entry := map[string]any{}
			for key, value := range object.Attrs {
				entry[key] = value
			}
			entry[wireKeyIdentity] = object.Identity
			objects = append(objects, entry)
		}
		return json.Marshal(map[string]any{
			wireKeyEvent:   message.Event,
			wireKeyObjects: objects,
		})
	case MessageConnectAck:
		return json.Marshal(map[string]any{
			wireKeyEvent:        message.Event,
			wireKeyConnectionId: message.ConnectionId,
		})
	default:
		return nil, fmt.Errorf("unknown event: %s", message.Event)
	}
}

func RequireEncodeMessage(message *Message) []byte {
	b, err := EncodeMessage(message)
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeMessage parses one wire message. It validates shape only
// (event tag, identity where the event requires one); attribute
// contents stay opaque.
func DecodeMessage(b []byte) (*Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}

	event, ok := raw[wireKeyEvent].(string)
	if !ok || event == "" {
		return nil, fmt.Errorf("missing event tag")
	}

	message := &Message{
		Event: event,
	}
	switch event {
	case MessageObjectAdded, MessageObjectModified, MessageObjectRemoved:
		identity, ok := raw[wireKeyIdentity].(string)
		if !ok || !ValidIdentity(identity) {
			return nil, fmt.Errorf("%s missing identity", event)
		}
		message.Identity = identity
		message.Attrs = attrsFromWire(raw)
	case MessageCanvasClear:
		// no payload
	case MessageObjectSync:
		entries, ok := raw[wireKeyObjects].([]any)
		if !ok {
			return nil, fmt.Errorf("%s missing objects", event)
		}
		for _, entry := range entries {
			fields, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s malformed object entry", event)
			}
			identity, ok := fields[wireKeyIdentity].(string)
			if !ok || !ValidIdentity(identity) {
				return nil, fmt.Errorf("%s object missing identity", event)
			}
			message.Objects = append(message.Objects, SceneObject{
				Identity: identity,
				Attrs:    attrsFromWire(fields),
			})
		}
	case MessageConnectAck:
		connectionId, ok := raw[wireKeyConnectionId].(string)
		if !ok || connectionId == "" {
			return nil, fmt.Errorf("%s missing connectionId", event)
		}
		message.ConnectionId = connectionId
	default:
		return nil, fmt.Errorf("unknown event: %s", event)
	}
	return message, nil
}

func attrsFromWire(raw map[string]any) AttributeBag {
	attrs := AttributeBag{}
	for key, value := range raw {
		switch key {
		case wireKeyEvent, wireKeyIdentity, wireKeyObjects, wireKeyConnectionId:
		default:
			attrs[key] = value
		}
	}
	return attrs
}
