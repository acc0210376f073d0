// Package hvacapi talks to the legacy HVAC REST backend. Every call is retried
// a bounded number of times and its outcome is reported to the fault tracker.
package hvacapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/janael-pinheiro/hvac-bridge/pkg/events"
	"github.com/janael-pinheiro/hvac-bridge/pkg/state"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// FaultTracker receives the outcome of every finished backend call.
type FaultTracker interface {
	MarkBackendSuccess(room string) (state.Transition, error)
	MarkBackendFailure(room string) (state.Transition, error)
}

type Client struct {
	baseURL        string
	username       string
	password       string
	retryLimit     int
	retryDelay     time.Duration
	requestTimeout time.Duration
	httpClient     *http.Client
	faults         FaultTracker
	sink           events.Sink
	log            *logrus.Entry
}

func NewClient(conf entities.BackendConfig, faults FaultTracker, sink events.Sink, log *logrus.Entry) *Client {
	return &Client{
		baseURL:        conf.BaseURL,
		username:       conf.Username,
		password:       conf.Password,
		retryLimit:     conf.RetryLimit,
		retryDelay:     conf.RetryDelay.Duration,
		requestTimeout: conf.RequestTimeout.Duration,
		httpClient:     &http.Client{},
		faults:         faults,
		sink:           sink,
		log:            log,
	}
}

// PollStatus reads the activation the backend currently holds for room.
func (c *Client) PollStatus(ctx context.Context, room string) (entities.ActiveState, error) {
	var status StatusResponse
	err := c.call(ctx, room, events.OperationPoll, "", func() error {
		return c.do(http.MethodGet, room, "status", nil, &status)
	})
	if err != nil {
		return entities.ActiveUnknown, err
	}
	return entities.ActiveStateFromBool(status.Status == statusActive), nil
}

// SendCommand asks the backend to activate or deactivate the room HVAC.
func (c *Client) SendCommand(ctx context.Context, room string, activate bool) error {
	command := CommandName(activate)
	return c.call(ctx, room, events.OperationCommand, command, func() error {
		return c.do(http.MethodPost, room, "command", CommandRequest{Command: command}, nil)
	})
}

// call runs request up to retryLimit times with a fixed delay in between.
// Cancelling ctx stops further attempts; the attempt in flight is bounded only
// by requestTimeout.
func (c *Client) call(ctx context.Context, room, operation, command string, request func() error) error {
	log := c.log.WithFields(logrus.Fields{"room": room, "operation": operation})
	if err := ctx.Err(); err != nil {
		return err
	}

	attempt := 0
	withAttempt := func() error {
		attempt++
		err := request()
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("backend attempt failed")
			c.sink.Record(events.Event{Kind: events.BackendAttempt, Room: room, Operation: operation, Command: command, Attempt: attempt, Reason: errors.Cause(err).Error()})
		}
		return err
	}

	b := backoff.WithContext(c.newBackOff(), ctx)
	err := backoff.Retry(withAttempt, b)
	if err == nil {
		c.sink.Record(events.Event{Kind: events.BackendSucceeded, Room: room, Operation: operation, Command: command, Attempt: attempt})
		c.markSuccess(room)
		return nil
	}
	if ctx.Err() != nil && attempt < c.retryLimit {
		return errors.Wrapf(ctx.Err(), "%s %s interrupted after %d attempts", operation, room, attempt)
	}

	log.WithError(err).Error("backend retries exhausted")
	c.sink.Record(events.Event{Kind: events.BackendExhausted, Room: room, Operation: operation, Command: command, Attempt: attempt})
	c.markFailure(room)
	return errors.Wrapf(ErrRetriesExhausted, "%s %s after %d attempts: %v", operation, room, attempt, err)
}

func (c *Client) newBackOff() backoff.BackOff {
	retries := c.retryLimit - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(retries))
}

func (c *Client) markSuccess(room string) {
	transition, err := c.faults.MarkBackendSuccess(room)
	if err != nil {
		c.log.WithError(err).Warn("mark backend success")
		return
	}
	if transition == state.Cleared {
		c.log.WithField("room", room).Info("backend fault cleared")
		c.sink.Record(events.Event{Kind: events.BackendFaultClear, Room: room})
	}
}

func (c *Client) markFailure(room string) {
	transition, err := c.faults.MarkBackendFailure(room)
	if err != nil {
		c.log.WithError(err).Warn("mark backend failure")
		return
	}
	if transition == state.Raised {
		c.sink.Record(events.Event{Kind: events.BackendFaultRaised, Room: room})
	}
}

func (c *Client) do(method, room, resource string, body interface{}, out interface{}) error {
	endpoint, err := url.JoinPath(c.baseURL, room, resource)
	if err != nil {
		return errors.Wrap(err, "build endpoint")
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		payload = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.Wrapf(ErrUnexpectedStatus, "%s %s: %d", method, endpoint, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
