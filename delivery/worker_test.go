package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-federation/core"
)

type stubSigner struct {
	calls int
	keys  core.ActorKeys
	err   error
}

func (s *stubSigner) Sign(_ context.Context, req *http.Request, keys core.ActorKeys) error {
	s.calls++
	s.keys = keys
	if s.err != nil {
		return s.err
	}
	req.Header.Set("Signature", `keyId="`+keys.KeyID+`"`)
	return nil
}

type stubDoer struct {
	req *http.Request
	res *http.Response
	err error
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	if d.err != nil {
		return nil, d.err
	}
	return d.res, nil
}

func TestWorkerDeliverSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != activityContentType {
			t.Errorf("unexpected content type %q", got)
		}
		if r.Header.Get("Signature") == "" {
			t.Error("expected signed request")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"type":"Create"}` {
			t.Errorf("unexpected body %q", body)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	signer := &stubSigner{}
	worker, err := NewWorker(server.Client(), signer, "go-federation-test")
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	outcome := worker.Deliver(context.Background(), core.DeliveryTask{
		ItemID: "item-1",
		URL:    server.URL + "/inbox",
		Body:   []byte(`{"type":"Create"}`),
		Keys:   core.ActorKeys{KeyID: "https://example.social/actors/alice#main-key", PrivateKeyPEM: []byte("pem")},
	})

	if !outcome.Success {
		t.Fatalf("expected success, got error %q", outcome.ErrorText)
	}
	if outcome.HTTPStatus != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", outcome.HTTPStatus)
	}
	if outcome.ItemID != "item-1" {
		t.Fatalf("expected item id to carry through, got %q", outcome.ItemID)
	}
	if signer.calls != 1 {
		t.Fatalf("expected one sign call, got %d", signer.calls)
	}
}

func TestWorkerDeliverRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	worker, err := NewWorker(server.Client(), &stubSigner{}, "")
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	outcome := worker.Deliver(context.Background(), core.DeliveryTask{
		URL:  server.URL + "/inbox",
		Keys: core.ActorKeys{KeyID: "key", PrivateKeyPEM: []byte("pem")},
	})

	if outcome.Success {
		t.Fatal("expected failure for 410 response")
	}
	if outcome.HTTPStatus != http.StatusGone {
		t.Fatalf("expected 410 got %d", outcome.HTTPStatus)
	}
	if !strings.Contains(outcome.ErrorText, "remote returned") {
		t.Fatalf("expected remote status in error text, got %q", outcome.ErrorText)
	}
}

func TestWorkerDeliverTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	worker, err := NewWorker(server.Client(), &stubSigner{}, "")
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	outcome := worker.Deliver(context.Background(), core.DeliveryTask{
		URL:     server.URL + "/inbox",
		Keys:    core.ActorKeys{KeyID: "key", PrivateKeyPEM: []byte("pem")},
		Timeout: 50 * time.Millisecond,
	})

	if outcome.Success {
		t.Fatal("expected failure on timeout")
	}
	if !strings.HasPrefix(outcome.ErrorText, "timeout:") {
		t.Fatalf("expected timeout classification, got %q", outcome.ErrorText)
	}
}

func TestWorkerDeliverSignerError(t *testing.T) {
	doer := &stubDoer{}
	worker, err := NewWorker(doer, &stubSigner{err: core.ErrKeysUnprovisioned}, "")
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	outcome := worker.Deliver(context.Background(), core.DeliveryTask{
		URL:  "https://remote.example/inbox",
		Keys: core.ActorKeys{},
	})

	if outcome.Success {
		t.Fatal("expected failure when signing fails")
	}
	if doer.req != nil {
		t.Fatal("expected no request to be sent after signing failure")
	}
	if !strings.Contains(outcome.ErrorText, "sign request") {
		t.Fatalf("unexpected error text %q", outcome.ErrorText)
	}
}

func TestNewWorkerRequiresSigner(t *testing.T) {
	if _, err := NewWorker(nil, nil, ""); err == nil {
		t.Fatal("expected error for missing signer")
	}
}
