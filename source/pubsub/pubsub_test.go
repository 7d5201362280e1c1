// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pubsub

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/z5labs/riverbed/stream"

	pubsubpb "cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	pull func(context.Context, *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error)
	ack  func(context.Context, *pubsubpb.AcknowledgeRequest) error
}

func (c *mockClient) Pull(ctx context.Context, in *pubsubpb.PullRequest, _ ...gax.CallOption) (*pubsubpb.PullResponse, error) {
	return c.pull(ctx, in)
}

func (c *mockClient) Acknowledge(ctx context.Context, in *pubsubpb.AcknowledgeRequest, _ ...gax.CallOption) error {
	return c.ack(ctx, in)
}

func TestSource_Messages(t *testing.T) {
	t.Run("will deliver one message per demand", func(t *testing.T) {
		t.Run("if the subscription holds a batch of messages", func(t *testing.T) {
			var pulls atomic.Int32
			client := &mockClient{
				pull: func(ctx context.Context, in *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error) {
					pulls.Add(1)
					return &pubsubpb.PullResponse{
						ReceivedMessages: []*pubsubpb.ReceivedMessage{
							{AckId: "1"},
							{AckId: "2"},
							{AckId: "3"},
						},
					}, nil
				},
			}

			src := New(client, "subscription")

			pl := stream.NewPuller(context.Background(), src.Messages())
			defer pl.Cancel()

			for _, want := range []string{"1", "2", "3"} {
				msg, ok, err := pl.Next(context.Background())
				require.Nil(t, err)
				require.True(t, ok)
				if !assert.Equal(t, want, msg.AckId) {
					return
				}
			}

			// All three messages came out of a single batch.
			if !assert.Equal(t, int32(1), pulls.Load()) {
				return
			}
		})
	})

	t.Run("will not pull messages", func(t *testing.T) {
		t.Run("if no subscriber has signalled demand", func(t *testing.T) {
			var pulls atomic.Int32
			client := &mockClient{
				pull: func(ctx context.Context, in *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error) {
					pulls.Add(1)
					return &pubsubpb.PullResponse{
						ReceivedMessages: []*pubsubpb.ReceivedMessage{{AckId: "1"}},
					}, nil
				},
			}

			src := New(client, "subscription")

			pl := stream.NewPuller(context.Background(), src.Messages())
			pl.Cancel()

			if !assert.Equal(t, int32(0), pulls.Load()) {
				return
			}
		})
	})

	t.Run("will fail the stream", func(t *testing.T) {
		t.Run("if the pull fails", func(t *testing.T) {
			pullErr := errors.New("pull failed")
			client := &mockClient{
				pull: func(ctx context.Context, in *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error) {
					return nil, pullErr
				},
			}

			src := New(client, "subscription")

			_, err := stream.Collect(context.Background(), src.Messages())
			if !assert.ErrorIs(t, err, pullErr) {
				return
			}
		})
	})
}

func TestSource_AcknowledgeBatch(t *testing.T) {
	t.Run("will acknowledge the given messages", func(t *testing.T) {
		t.Run("if the batch is non-empty", func(t *testing.T) {
			var got *pubsubpb.AcknowledgeRequest
			client := &mockClient{
				ack: func(ctx context.Context, in *pubsubpb.AcknowledgeRequest) error {
					got = in
					return nil
				},
			}

			src := New(client, "subscription")

			err := src.AcknowledgeBatch(context.Background(), []*pubsubpb.ReceivedMessage{
				{AckId: "1"},
				{AckId: "2"},
			})
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "subscription", got.Subscription) {
				return
			}
			if !assert.Equal(t, []string{"1", "2"}, got.AckIds) {
				return
			}
		})
	})

	t.Run("will not call the subscription", func(t *testing.T) {
		t.Run("if the batch is empty", func(t *testing.T) {
			client := &mockClient{
				ack: func(ctx context.Context, in *pubsubpb.AcknowledgeRequest) error {
					t.Error("unexpected acknowledge call")
					return nil
				},
			}

			src := New(client, "subscription")

			err := src.AcknowledgeBatch(context.Background(), nil)
			if !assert.Nil(t, err) {
				return
			}
		})
	})

	t.Run("will return the failure", func(t *testing.T) {
		t.Run("if the acknowledge call fails", func(t *testing.T) {
			ackErr := errors.New("acknowledge failed")
			client := &mockClient{
				ack: func(ctx context.Context, in *pubsubpb.AcknowledgeRequest) error {
					return ackErr
				},
			}

			src := New(client, "subscription")

			err := src.AcknowledgeBatch(context.Background(), []*pubsubpb.ReceivedMessage{{AckId: "1"}})
			if !assert.ErrorIs(t, err, ackErr) {
				return
			}
		})
	})
}
