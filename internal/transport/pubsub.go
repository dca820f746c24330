package transport

import (
	"context"
	"log"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/dverbeek/panocast/internal/proto"
)

const publishTimeout = 5 * time.Second

// PubSub is the networked channel: a GossipSub topic reaching participants on
// other devices. Delivery is subject to real network latency and loss and can
// drop to zero messages when the link is down.
type PubSub struct {
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	selfID string
	subs   *handlerSet
	cancel context.CancelFunc
}

// NewPubSub wraps an already-joined topic. Messages published by selfID are
// filtered out of the receive path so a participant never applies its own
// echoes.
func NewPubSub(ctx context.Context, topic *pubsub.Topic, sub *pubsub.Subscription, selfID string) *PubSub {
	loopCtx, cancel := context.WithCancel(ctx)
	t := &PubSub{
		topic:  topic,
		sub:    sub,
		selfID: selfID,
		subs:   newHandlerSet(),
		cancel: cancel,
	}
	go t.readLoop(loopCtx)
	return t
}

func (t *PubSub) readLoop(ctx context.Context) {
	for {
		m, err := t.sub.Next(ctx)
		if err != nil {
			return
		}

		msg, err := proto.Decode(m.Data)
		if err != nil {
			log.Printf("TRANSPORT: dropping undecodable pubsub message: %v", err)
			continue
		}
		if msg.From == "" || msg.From == t.selfID {
			continue
		}
		t.subs.dispatch(msg)
	}
}

// Send publishes asynchronously. A publish failure is a trace-level event,
// not an error: the local path still delivered the message.
func (t *PubSub) Send(msg proto.Message) {
	b, err := proto.Encode(msg)
	if err != nil {
		log.Printf("TRANSPORT: encode %s: %v", msg.Type, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := t.topic.Publish(ctx, b); err != nil {
			log.Printf("TRANSPORT: publish %s: %v", msg.Type, err)
		}
	}()
}

func (t *PubSub) Subscribe(h Handler) (cancel func()) {
	return t.subs.add(h)
}

func (t *PubSub) Close() error {
	t.cancel()
	t.sub.Cancel()
	t.subs.clear()
	return t.topic.Close()
}
