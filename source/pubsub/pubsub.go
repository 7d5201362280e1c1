// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pubsub surfaces Google Cloud Pub/Sub subscriptions as
// demand driven message streams.
package pubsub

import (
	"context"
	"log/slog"

	"github.com/z5labs/riverbed/pkg/noop"
	"github.com/z5labs/riverbed/pkg/otelslog"
	"github.com/z5labs/riverbed/pkg/slogfield"
	"github.com/z5labs/riverbed/stream"

	pubsubpb "cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client is the subset of the Pub/Sub subscriber API used by [Source].
type Client interface {
	Pull(context.Context, *pubsubpb.PullRequest, ...gax.CallOption) (*pubsubpb.PullResponse, error)
	Acknowledge(context.Context, *pubsubpb.AcknowledgeRequest, ...gax.CallOption) error
}

type options struct {
	logHandler       slog.Handler
	maxNumOfMessages int32
}

// Option defines a configuration option for [Source].
type Option func(*options)

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// MaxNumOfMessages caps how many messages a single pull can return.
// The default is 10.
func MaxNumOfMessages(n int32) Option {
	return func(o *options) {
		o.maxNumOfMessages = n
	}
}

// Source exposes a Pub/Sub subscription as a publisher of received
// messages. Messages are only pulled as subscriber demand allows.
type Source struct {
	log    *slog.Logger
	pubsub Client

	subscription     string
	maxNumOfMessages int32
}

// New initializes a [Source] for the given subscription.
func New(client Client, subscription string, opts ...Option) *Source {
	o := &options{
		logHandler:       noop.LogHandler{},
		maxNumOfMessages: 10,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Source{
		log:              otelslog.New(o.logHandler),
		pubsub:           client,
		subscription:     subscription,
		maxNumOfMessages: o.maxNumOfMessages,
	}
}

// Messages returns a publisher of received messages. A pull is only
// issued once a subscriber has outstanding demand and the previous
// batch has been fully delivered. Pull failures fail the stream.
func (s *Source) Messages() stream.Publisher[*pubsubpb.ReceivedMessage] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[*pubsubpb.ReceivedMessage]) error {
		tracer := otel.Tracer("pubsub")

		var pending []*pubsubpb.ReceivedMessage
		for {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			for len(pending) == 0 {
				spanCtx, span := tracer.Start(ctx, "Source.Messages")
				resp, err := s.pubsub.Pull(spanCtx, &pubsubpb.PullRequest{
					Subscription: s.subscription,
					MaxMessages:  s.maxNumOfMessages,
				})
				span.End()
				if err != nil {
					s.log.ErrorContext(spanCtx, "failed to pull messages", slogfield.Error(err))
					return err
				}

				s.log.InfoContext(spanCtx, "received messages", slogfield.Int("num_of_messages", len(resp.ReceivedMessages)))
				pending = resp.ReceivedMessages
			}

			e.Emit(pending[0])
			pending = pending[1:]
		}
	})
}

// AcknowledgeBatch acknowledges the given messages.
func (s *Source) AcknowledgeBatch(ctx context.Context, msgs []*pubsubpb.ReceivedMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	spanCtx, span := otel.Tracer("pubsub").Start(ctx, "Source.AcknowledgeBatch", trace.WithAttributes(
		attribute.Int("num_of_messages", len(msgs)),
	))
	defer span.End()

	ackIds := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ackIds = append(ackIds, msg.AckId)
	}

	err := s.pubsub.Acknowledge(spanCtx, &pubsubpb.AcknowledgeRequest{
		Subscription: s.subscription,
		AckIds:       ackIds,
	})
	if err != nil {
		s.log.ErrorContext(
			spanCtx,
			"failed to batch acknowledge messages",
			slogfield.Int("num_of_ack_ids", len(ackIds)),
			slogfield.Error(err),
		)
		return err
	}
	return nil
}
