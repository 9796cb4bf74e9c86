// Package sqs implements transport.Transport over AWS SQS: invocations go
// to "<prefix><concept>-invocations", completions are read from
// "<prefix><concept>-completions", correlated by ID; a request is
// considered failed if no completion appears within a configured timeout.
package sqs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
)

// Client is the subset of *sqs.Client this adapter needs, so tests can
// substitute a fake without spinning up AWS.
type Client interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Transport invokes one concept over its pair of invocation/completion
// queues.
type Transport struct {
	client Client

	invocationQueueURL string
	completionQueueURL string

	// ReceiveTimeout bounds how long Invoke waits for a matching completion
	// message before failing; defaults to transport.DefaultTimeout.
	ReceiveTimeout time.Duration

	// PollInterval bounds how long a single ReceiveMessage long-poll waits;
	// kept short of ReceiveTimeout so Invoke can re-check deadlines.
	PollInterval time.Duration
}

// New builds an SQS transport for one concept, given the queue URLs for its
// "<prefix><concept>-invocations" and "<prefix><concept>-completions"
// queues (resolving the URL from the queue name is the caller's job, done
// once at registration time).
func New(client Client, invocationQueueURL, completionQueueURL string) *Transport {
	return &Transport{
		client:             client,
		invocationQueueURL: invocationQueueURL,
		completionQueueURL: completionQueueURL,
		ReceiveTimeout:     10 * time.Second,
		PollInterval:       2 * time.Second,
	}
}

func (t *Transport) Invoke(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not encode invocation")
	}

	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.invocationQueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"id": {DataType: aws.String("String"), StringValue: aws.String(inv.ID.String())},
		},
	})
	if err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not send invocation")
	}

	deadline := time.Now().Add(t.ReceiveTimeout)
	for time.Now().Before(deadline) {
		c, found, err := t.pollOnce(ctx, inv.ID)
		if err != nil {
			return model.ActionCompletion{}, err
		}
		if found {
			c.Concept, c.Action, c.Input, c.Flow = inv.Concept, inv.Action, inv.Input, inv.Flow
			return c, nil
		}
		select {
		case <-ctx.Done():
			return model.ActionCompletion{}, ctx.Err()
		default:
		}
	}

	return model.ActionCompletion{}, errors.Errorf("sqs transport: timeout waiting for completion of %s", inv.ID)
}

// pollOnce receives up to one batch of completion messages and, if one
// matches id, deletes it and returns it. Non-matching messages are left on
// the queue for whatever correlation loop is waiting on them — a real
// deployment shards this with a visibility-timeout strategy per concurrent
// caller; that policy lives above this adapter.
func (t *Transport) pollOnce(ctx context.Context, id model.ID) (model.ActionCompletion, bool, error) {
	out, err := t.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(t.completionQueueURL),
		MaxNumberOfMessages:   10,
		WaitTimeSeconds:       int32(t.PollInterval.Seconds()),
		MessageAttributeNames: []string{"id"},
	})
	if err != nil {
		return model.ActionCompletion{}, false, errors.Wrap(err, "could not receive completions")
	}

	for _, msg := range out.Messages {
		var c model.ActionCompletion
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &c); err != nil {
			continue
		}
		if c.ID != id {
			continue
		}
		_, _ = t.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(t.completionQueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		return c, true, nil
	}
	return model.ActionCompletion{}, false, nil
}

// QueueNames derives the two queue names for a concept URI.
func QueueNames(prefix, concept string) (invocations, completions string) {
	return prefix + concept + "-invocations", prefix + concept + "-completions"
}
