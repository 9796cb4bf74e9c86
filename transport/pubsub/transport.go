// Package pubsub implements transport.Transport over go-libp2p-pubsub,
// modeled on subscribing once to a topic and caching the handle for reuse.
// Each concept URI gets one gossipsub topic for invocations and one for
// completions, analogous to an SQS queue pair but broadcast rather than
// point-to-point.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
)

// Transport invokes one concept by publishing to its invocation topic and
// waiting on its completion topic subscription for a matching ID.
type Transport struct {
	host host.Host
	ps   *pubsub.PubSub

	invocationTopic *pubsub.Topic
	completionTopic *pubsub.Topic
	completionSub   *pubsub.Subscription

	// AckDeadline bounds how long Invoke waits for a matching completion
	// before failing, mirroring an SQS/Pub-Sub "ack deadline."
	AckDeadline time.Duration

	mu      sync.Mutex
	waiters map[model.ID]chan model.ActionCompletion

	cancel context.CancelFunc
}

// New joins the invocation and completion topics for concept uri and
// starts the background loop delivering completions to waiting Invoke
// calls.
func New(ctx context.Context, h host.Host, ps *pubsub.PubSub, uri string) (*Transport, error) {
	invTopic, err := ps.Join(uri + "/invoke")
	if err != nil {
		return nil, errors.Wrapf(err, "could not join invocation topic for %s", uri)
	}
	compTopic, err := ps.Join(uri + "/completion")
	if err != nil {
		return nil, errors.Wrapf(err, "could not join completion topic for %s", uri)
	}
	sub, err := compTopic.Subscribe()
	if err != nil {
		return nil, errors.Wrapf(err, "could not subscribe to completion topic for %s", uri)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t := &Transport{
		host:            h,
		ps:              ps,
		invocationTopic: invTopic,
		completionTopic: compTopic,
		completionSub:   sub,
		AckDeadline:     30 * time.Second,
		waiters:         make(map[model.ID]chan model.ActionCompletion),
		cancel:          cancel,
	}
	go t.readLoop(loopCtx)
	return t, nil
}

func (t *Transport) readLoop(ctx context.Context) {
	for {
		msg, err := t.completionSub.Next(ctx)
		if err != nil {
			return // ctx cancelled or subscription closed
		}
		var c model.ActionCompletion
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			continue
		}

		t.mu.Lock()
		waiter, ok := t.waiters[c.ID]
		if ok {
			delete(t.waiters, c.ID)
		}
		t.mu.Unlock()
		if ok {
			waiter <- c
		}
	}
}

func (t *Transport) Invoke(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error) {
	reply := make(chan model.ActionCompletion, 1)
	t.mu.Lock()
	t.waiters[inv.ID] = reply
	t.mu.Unlock()

	data, err := json.Marshal(inv)
	if err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not encode invocation")
	}
	if err := t.invocationTopic.Publish(ctx, data); err != nil {
		t.mu.Lock()
		delete(t.waiters, inv.ID)
		t.mu.Unlock()
		return model.ActionCompletion{}, errors.Wrap(err, "could not publish invocation")
	}

	select {
	case c := <-reply:
		return c, nil
	case <-time.After(t.AckDeadline):
		t.mu.Lock()
		delete(t.waiters, inv.ID)
		t.mu.Unlock()
		return model.ActionCompletion{}, fmt.Errorf("pubsub transport: ack deadline exceeded for %s", inv.ID)
	case <-ctx.Done():
		return model.ActionCompletion{}, ctx.Err()
	}
}

// Close cancels the read loop and leaves both topics.
func (t *Transport) Close() error {
	t.cancel()
	t.completionSub.Cancel()
	if err := t.invocationTopic.Close(); err != nil {
		return err
	}
	return t.completionTopic.Close()
}
