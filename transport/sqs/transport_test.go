package sqs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
)

type fakeClient struct {
	sent      []*awssqs.SendMessageInput
	completed []types.Message
	deleted   []string
}

func (f *fakeClient) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &awssqs.SendMessageOutput{}, nil
}

func (f *fakeClient) ReceiveMessage(_ context.Context, _ *awssqs.ReceiveMessageInput, _ ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	msgs := f.completed
	f.completed = nil
	return &awssqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (f *fakeClient) DeleteMessage(_ context.Context, in *awssqs.DeleteMessageInput, _ ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, *in.ReceiptHandle)
	return &awssqs.DeleteMessageOutput{}, nil
}

func TestQueueNamesDerivesPair(t *testing.T) {
	inv, comp := QueueNames("conceptrt-", "Echo")
	require.Equal(t, "conceptrt-Echo-invocations", inv)
	require.Equal(t, "conceptrt-Echo-completions", comp)
}

// TestInvokeSendsThenPollsForMatchingCompletion seeds the fake queue with
// the matching completion before the first poll, so Invoke's single
// send-then-poll cycle finds it immediately without needing a background
// writer racing the poll loop.
func TestInvokeSendsThenPollsForMatchingCompletion(t *testing.T) {
	client := &fakeClient{}
	tr := New(client, "inv-url", "comp-url")
	tr.PollInterval = time.Millisecond

	inv := model.ActionInvocation{ID: model.NewID(), Concept: "Echo", Action: "send"}

	completion := model.ActionCompletion{ID: inv.ID, Variant: model.VariantOK, Output: model.Fields{"echo": "hi"}}
	raw, err := json.Marshal(completion)
	require.NoError(t, err)

	handle := "receipt-1"
	client.completed = []types.Message{{Body: strPtr(string(raw)), ReceiptHandle: &handle}}

	c, err := tr.Invoke(context.Background(), inv)
	require.NoError(t, err)
	require.Equal(t, model.VariantOK, c.Variant)
	require.Equal(t, "hi", c.Output["echo"])
	require.Len(t, client.sent, 1)
	require.Contains(t, client.deleted, handle)
}

// TestInvokeTimesOutWhenNoCompletionArrives exercises the failure path: no
// message is ever queued, so Invoke must give up once ReceiveTimeout
// elapses rather than block forever.
func TestInvokeTimesOutWhenNoCompletionArrives(t *testing.T) {
	client := &fakeClient{}
	tr := New(client, "inv-url", "comp-url")
	tr.PollInterval = time.Millisecond
	tr.ReceiveTimeout = 5 * time.Millisecond

	inv := model.ActionInvocation{ID: model.NewID(), Concept: "Echo", Action: "send"}
	_, err := tr.Invoke(context.Background(), inv)
	require.Error(t, err)
}

func strPtr(s string) *string { return &s }
