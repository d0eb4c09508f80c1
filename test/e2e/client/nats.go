// Package client wraps the NATS and HTTP access shared by e2e scenarios.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	variationapi "github.com/c360studio/doppel/processor/variation-api"
	e2econfig "github.com/c360studio/doppel/test/e2e/config"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSClient is the messaging side of the e2e harness. It publishes
// variation requests the way an external producer would and watches
// result subjects for what comes back.
type NATSClient struct {
	base *natsclient.Client
	conn *nats.Conn
	js   jetstream.JetStream

	closeOnce sync.Once
	closeErr  error
}

// NewNATSClient connects to the given NATS URL and blocks until the
// connection is established or ctx expires.
func NewNATSClient(ctx context.Context, url string) (*NATSClient, error) {
	base, err := natsclient.NewClient(url,
		natsclient.WithName("doppel-e2e"),
		natsclient.WithMaxReconnects(3),
		natsclient.WithReconnectWait(500*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("nats client: %w", err)
	}
	if err := base.Connect(ctx); err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := base.WaitForConnection(waitCtx); err != nil {
		return nil, fmt.Errorf("nats connection wait: %w", err)
	}

	js, err := base.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &NATSClient{base: base, conn: base.GetConnection(), js: js}, nil
}

// Close drains the connection. Safe to call more than once; only the
// first call does the work.
func (nc *NATSClient) Close(ctx context.Context) error {
	nc.closeOnce.Do(func() { nc.closeErr = nc.base.Close(ctx) })
	return nc.closeErr
}

// Core NATS publish has no context form, so cancellation is honored
// up front and the publish itself is fire-and-forget.
func (nc *NATSClient) publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context ended before publish: %w", err)
	}
	return nc.conn.Publish(subject, data)
}

// PublishVariationRequest wraps a variation request in the doppel message
// envelope and publishes it on the request subject for its requester. The
// DOPPEL stream captures the publish, so the service's durable consumer
// picks it up.
func (nc *NATSClient) PublishVariationRequest(ctx context.Context, req variationapi.Request) error {
	env := message.NewBaseMessage(variationapi.RequestType, req, "doppel-e2e")
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal request envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", e2econfig.RequestSubjectPrefix, req.Requester)
	return nc.publish(ctx, subject, data)
}

// StreamExists reports whether a JetStream stream with the given name is
// defined on the connected server.
func (nc *NATSClient) StreamExists(ctx context.Context, name string) (bool, error) {
	_, err := nc.js.Stream(ctx, name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stream lookup: %w", err)
	}
	return true, nil
}

// MessageCapture accumulates everything published on one subject so a
// scenario can assert on it after the fact.
type MessageCapture struct {
	sub *nats.Subscription

	mu   sync.Mutex
	msgs []*nats.Msg
}

// CaptureMessages subscribes to subject and starts recording. The caller
// must Stop the capture to release the subscription.
func (nc *NATSClient) CaptureMessages(subject string) (*MessageCapture, error) {
	cp := &MessageCapture{}
	sub, err := nc.conn.Subscribe(subject, func(m *nats.Msg) {
		cp.mu.Lock()
		cp.msgs = append(cp.msgs, m)
		cp.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	cp.sub = sub
	return cp, nil
}

// CaptureResults starts capturing variation results for a request ID.
// Call before publishing the request so the result cannot slip past.
func (nc *NATSClient) CaptureResults(requestID string) (*MessageCapture, error) {
	subject := fmt.Sprintf("%s.%s", e2econfig.ResultSubjectPrefix, requestID)
	return nc.CaptureMessages(subject)
}

// Messages returns a snapshot of everything captured so far.
func (cp *MessageCapture) Messages() []*nats.Msg {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	out := make([]*nats.Msg, len(cp.msgs))
	copy(out, cp.msgs)
	return out
}

// Count returns how many messages have been captured.
func (cp *MessageCapture) Count() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.msgs)
}

// WaitForCount polls until at least n messages arrived or ctx ends.
func (cp *MessageCapture) WaitForCount(ctx context.Context, n int) error {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for cp.Count() < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// FirstResponse decodes the first captured message as a variation response.
func (cp *MessageCapture) FirstResponse() (*variationapi.Response, error) {
	msgs := cp.Messages()
	if len(msgs) == 0 {
		return nil, errors.New("no messages captured")
	}

	var env message.BaseMessage
	if err := json.Unmarshal(msgs[0].Data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	payload, err := json.Marshal(env.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var resp variationapi.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode response payload: %w", err)
	}
	return &resp, nil
}

// Stop unsubscribes the capture.
func (cp *MessageCapture) Stop() error {
	if cp.sub == nil {
		return nil
	}
	return cp.sub.Unsubscribe()
}
