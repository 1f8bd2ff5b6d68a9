package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fd1az/dex-arb-bot/business/execution/domain"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
)

// fixedBuilder serves a canned bundle.
type fixedBuilder struct {
	bundle domain.Bundle
	err    error
}

func (b *fixedBuilder) Build(ctx context.Context, opp scannerDomain.ArbitrageOpportunity) (domain.Bundle, error) {
	return b.bundle, b.err
}

func testBundle() domain.Bundle {
	return domain.Bundle{
		Txs:         []string{"0x02f87082"},
		TargetBlock: 101,
	}
}

func testSubmitter(t *testing.T, url string, maxAttempts int) *Submitter {
	t.Helper()
	s, err := NewSubmitter(Config{
		URL:         url,
		Timeout:     2 * time.Second,
		RateLimit:   1000,
		Burst:       10,
		MaxAttempts: maxAttempts,
	}, &fixedBuilder{bundle: testBundle()}, testLogger())
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}
	return s
}

func TestSubmitDeliversBundle(t *testing.T) {
	var got bundleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0xabc123"}}`))
	}))
	defer srv.Close()

	s := testSubmitter(t, srv.URL, 1)

	res, err := s.Submit(t.Context(), testOpportunity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Success {
		t.Fatal("expected accepted submission")
	}
	if res.BundleHash != "0xabc123" {
		t.Fatalf("expected relay bundle hash, got %q", res.BundleHash)
	}

	if got.Method != "eth_sendBundle" {
		t.Fatalf("expected eth_sendBundle, got %q", got.Method)
	}
	if len(got.Params) != 1 || len(got.Params[0].Txs) != 1 {
		t.Fatalf("unexpected params: %+v", got.Params)
	}
	if got.Params[0].BlockNumber != "0x65" {
		t.Fatalf("expected block 0x65, got %q", got.Params[0].BlockNumber)
	}
}

func TestSubmitRejectionDoesNotRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"bundle reverted"}}`))
	}))
	defer srv.Close()

	s := testSubmitter(t, srv.URL, 3)

	_, err := s.Submit(t.Context(), testOpportunity())
	if apperror.GetCode(err) != apperror.CodeBundleRejected {
		t.Fatalf("expected BUNDLE_REJECTED, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("rejection should not retry, saw %d calls", n)
	}
}

func TestSubmitRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0xdef"}}`))
	}))
	defer srv.Close()

	s := testSubmitter(t, srv.URL, 3)

	res, err := s.Submit(t.Context(), testOpportunity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Success || res.BundleHash != "0xdef" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 attempts, saw %d", n)
	}
}

func TestSubmitExhaustsAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := testSubmitter(t, srv.URL, 2)

	_, err := s.Submit(t.Context(), testOpportunity())
	if apperror.GetCode(err) != apperror.CodeRelaySubmitFailed {
		t.Fatalf("expected RELAY_SUBMIT_FAILED, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected 2 attempts, saw %d", n)
	}
}

func TestSubmitPropagatesBuildErrors(t *testing.T) {
	s, err := NewSubmitter(Config{
		URL:         "http://127.0.0.1:0",
		MaxAttempts: 1,
	}, &fixedBuilder{err: apperror.New(apperror.CodeInvalidState)}, testLogger())
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	_, err = s.Submit(t.Context(), testOpportunity())
	if apperror.GetCode(err) != apperror.CodeInvalidState {
		t.Fatalf("expected builder error to pass through, got %v", err)
	}
}
