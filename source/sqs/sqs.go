// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sqs surfaces AWS SQS queues as demand driven message streams.
package sqs

import (
	"context"
	"log/slog"

	"github.com/z5labs/riverbed/pkg/noop"
	"github.com/z5labs/riverbed/pkg/otelslog"
	"github.com/z5labs/riverbed/pkg/slogfield"
	"github.com/z5labs/riverbed/stream"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client is the subset of the SQS API used by [Source].
type Client interface {
	ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(context.Context, *sqs.DeleteMessageBatchInput, ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

type options struct {
	logHandler        slog.Handler
	maxNumOfMessages  int32
	visibilityTimeout int32
	waitTimeSeconds   int32
}

// Option defines a configuration option for [Source].
type Option func(*options)

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// MaxNumOfMessages caps how many messages a single receive call can
// return. The default is 10.
func MaxNumOfMessages(n int32) Option {
	return func(o *options) {
		o.maxNumOfMessages = n
	}
}

// VisibilityTimeout sets the visibility timeout, in seconds, applied
// to received messages.
func VisibilityTimeout(n int32) Option {
	return func(o *options) {
		o.visibilityTimeout = n
	}
}

// WaitTimeSeconds enables long polling by waiting up to n seconds for
// messages to arrive.
func WaitTimeSeconds(n int32) Option {
	return func(o *options) {
		o.waitTimeSeconds = n
	}
}

// Source exposes an SQS queue as a publisher of messages. Messages
// are only received from the queue as subscriber demand allows, so an
// overwhelmed consumer leaves messages in the queue instead of
// buffering them in memory.
type Source struct {
	log *slog.Logger
	sqs Client

	queueUrl          string
	maxNumOfMessages  int32
	visibilityTimeout int32
	waitTimeSeconds   int32
}

// New initializes a [Source] for the given queue.
func New(client Client, queueUrl string, opts ...Option) *Source {
	o := &options{
		logHandler:       noop.LogHandler{},
		maxNumOfMessages: 10,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Source{
		log:               otelslog.New(o.logHandler),
		sqs:               client,
		queueUrl:          queueUrl,
		maxNumOfMessages:  o.maxNumOfMessages,
		visibilityTimeout: o.visibilityTimeout,
		waitTimeSeconds:   o.waitTimeSeconds,
	}
}

// Messages returns a publisher of messages from the queue. A receive
// call is only issued once a subscriber has outstanding demand and
// the previous batch has been fully delivered. Receive failures fail
// the stream.
func (s *Source) Messages() stream.Publisher[types.Message] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[types.Message]) error {
		tracer := otel.Tracer("sqs")

		var pending []types.Message
		for {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			for len(pending) == 0 {
				spanCtx, span := tracer.Start(ctx, "Source.Messages")
				resp, err := s.sqs.ReceiveMessage(spanCtx, &sqs.ReceiveMessageInput{
					QueueUrl:            &s.queueUrl,
					MaxNumberOfMessages: s.maxNumOfMessages,
					VisibilityTimeout:   s.visibilityTimeout,
					WaitTimeSeconds:     s.waitTimeSeconds,
				})
				span.End()
				if err != nil {
					s.log.ErrorContext(spanCtx, "failed to receive messages", slogfield.Error(err))
					return err
				}

				s.log.InfoContext(spanCtx, "received messages", slogfield.Int("num_of_messages", len(resp.Messages)))
				pending = resp.Messages
			}

			e.Emit(pending[0])
			pending = pending[1:]
		}
	})
}

// DeleteBatch deletes the given messages from the queue. Individual
// delete failures are logged but do not fail the call.
func (s *Source) DeleteBatch(ctx context.Context, msgs []types.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	spanCtx, span := otel.Tracer("sqs").Start(ctx, "Source.DeleteBatch", trace.WithAttributes(
		attribute.Int("num_of_messages", len(msgs)),
	))
	defer span.End()

	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			ReceiptHandle: msg.ReceiptHandle,
			Id:            msg.MessageId,
		})
	}

	resp, err := s.sqs.DeleteMessageBatch(spanCtx, &sqs.DeleteMessageBatchInput{
		QueueUrl: &s.queueUrl,
		Entries:  entries,
	})
	if err != nil {
		s.log.ErrorContext(
			spanCtx,
			"failed to batch delete messages",
			slogfield.Int("num_of_delete_entries", len(entries)),
			slogfield.Error(err),
		)
		return err
	}
	for _, entry := range resp.Failed {
		s.log.ErrorContext(
			spanCtx,
			"failed to delete message",
			slogfield.String("sqs_message_id", *entry.Id),
			slogfield.String("sqs_error_code", *entry.Code),
			slogfield.String("sqs_error_message", *entry.Message),
			slogfield.Bool("sqs_sender_fault", entry.SenderFault),
		)
	}
	return nil
}
