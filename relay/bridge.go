package relay

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBridge connects relay instances through redis pub/sub so a
// session can span more than one relay. Every instance publishes its
// session traffic tagged with its own instance id and applies traffic
// published by the others; the tag is what stops an instance from
// re-applying its own messages.
type RedisBridge struct {
	ctx    context.Context
	cancel context.CancelFunc

	instanceId string
	client     *redis.Client
}

type bridgeEnvelope struct {
	Instance string          `json:"instance"`
	Payload  json.RawMessage `json:"payload"`
}

func NewRedisBridge(ctx context.Context, addr string) (*RedisBridge, error) {
	cancelCtx, cancel := context.WithCancel(ctx)
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(cancelCtx).Err(); err != nil {
		cancel()
		client.Close()
		return nil, err
	}
	return &RedisBridge{
		ctx:        cancelCtx,
		cancel:     cancel,
		instanceId: uuid.NewString(),
		client:     client,
	}, nil
}

func (self *RedisBridge) InstanceId() string {
	return self.instanceId
}

func channelName(sessionName string) string {
	return "inklet:" + sessionName
}

func (self *RedisBridge) Publish(sessionName string, payload []byte) {
	b, err := json.Marshal(&bridgeEnvelope{
		Instance: self.instanceId,
		Payload:  payload,
	})
	if err != nil {
		glog.Infof("[bridge]encode error = %s\n", err)
		return
	}
	if err := self.client.Publish(self.ctx, channelName(sessionName), b).Err(); err != nil {
		glog.Infof("[bridge]publish %s error = %s\n", sessionName, err)
	}
}

// Subscribe applies payloads published for the session by other
// instances. Returns the unsubscribe function.
func (self *RedisBridge) Subscribe(sessionName string, apply func(payload []byte)) func() {
	pubsub := self.client.Subscribe(self.ctx, channelName(sessionName))
	subCtx, subCancel := context.WithCancel(self.ctx)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case message, ok := <-ch:
				if !ok {
					return
				}
				payload, ok := self.accept([]byte(message.Payload))
				if !ok {
					continue
				}
				apply(payload)
			}
		}
	}()

	return subCancel
}

// accept unwraps one published envelope, rejecting this instance's own
// traffic and malformed envelopes.
func (self *RedisBridge) accept(b []byte) ([]byte, bool) {
	var envelope bridgeEnvelope
	if err := json.Unmarshal(b, &envelope); err != nil {
		glog.Infof("[bridge]drop malformed envelope = %s\n", err)
		return nil, false
	}
	if envelope.Instance == self.instanceId {
		return nil, false
	}
	if len(envelope.Payload) == 0 {
		return nil, false
	}
	return envelope.Payload, true
}

func (self *RedisBridge) Close() {
	self.cancel()
	self.client.Close()
}
