package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-federation/core"
)

const activityContentType = `application/activity+json; charset=utf-8`

// Doer is the slice of http.Client the worker needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Worker performs one signed delivery attempt against one destination URL.
// Success is a 2xx response; any other status or transport-level error is a
// failure with the cause captured verbatim for the audit trail.
type Worker struct {
	Client    Doer
	Signer    core.RequestSigner
	UserAgent string
	Now       func() time.Time
}

func NewWorker(client Doer, signer core.RequestSigner, userAgent string) (*Worker, error) {
	if signer == nil {
		return nil, fmt.Errorf("delivery: request signer is required")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Worker{
		Client:    client,
		Signer:    signer,
		UserAgent: strings.TrimSpace(userAgent),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Deliver executes exactly one attempt for the task. The task timeout is
// applied to the whole attempt: connection, TLS handshake, and response
// read. Attempts that exceed it report a failed outcome and abandon the
// connection.
func (w *Worker) Deliver(ctx context.Context, task core.DeliveryTask) core.DeliveryOutcome {
	startedAt := w.now()
	outcome := core.DeliveryOutcome{
		ItemID: task.ItemID,
		URL:    task.URL,
	}
	if w == nil || w.Signer == nil {
		outcome.ErrorText = "delivery: worker is not configured"
		return outcome
	}

	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.URL, bytes.NewReader(task.Body))
	if err != nil {
		outcome.ErrorText = fmt.Sprintf("build request: %v", err)
		outcome.Duration = w.now().Sub(startedAt)
		return outcome
	}
	req.Header.Set("Content-Type", activityContentType)
	req.Header.Set("Accept", "application/activity+json")
	if w.UserAgent != "" {
		req.Header.Set("User-Agent", w.UserAgent)
	}

	if err := w.Signer.Sign(ctx, req, task.Keys); err != nil {
		outcome.ErrorText = fmt.Sprintf("sign request: %v", err)
		outcome.Duration = w.now().Sub(startedAt)
		return outcome
	}

	client := w.Client
	if client == nil {
		client = &http.Client{}
	}
	res, err := client.Do(req)
	outcome.Duration = w.now().Sub(startedAt)
	if err != nil {
		outcome.ErrorText = classifyTransportError(err)
		return outcome
	}
	defer res.Body.Close()

	outcome.HTTPStatus = res.StatusCode
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		outcome.Success = true
		return outcome
	}
	outcome.ErrorText = fmt.Sprintf("remote returned %s", res.Status)
	return outcome
}

func (w *Worker) now() time.Time {
	if w != nil && w.Now != nil {
		return w.Now()
	}
	return time.Now().UTC()
}

// classifyTransportError prefixes the verbatim error with its transport
// class so operators can group failures without parsing driver text.
func classifyTransportError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Sprintf("timeout: %v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timeout: %v", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("dns: %v", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("connection: %v", err)
	}
	return err.Error()
}
