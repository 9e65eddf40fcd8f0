package ledgerexport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type scriptedInserter struct {
	errs  []error
	calls int
	table string
}

func (s *scriptedInserter) InsertRows(_ context.Context, table string, _ []any) error {
	s.table = table
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func newTestWriter(t *testing.T, inserter *scriptedInserter) *Writer {
	t.Helper()
	w, err := NewWriter(inserter, " stock_movements ", RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	w.sleep = func(context.Context, time.Duration) error { return nil }
	return w
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	inserter := &scriptedInserter{errs: []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "try again"),
	}}
	w := newTestWriter(t, inserter)

	if err := w.Write(context.Background(), []any{struct{}{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if inserter.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inserter.calls)
	}
	if inserter.table != "stock_movements" {
		t.Fatalf("unexpected table %q", inserter.table)
	}
}

func TestWriterStopsOnPermanentErrors(t *testing.T) {
	inserter := &scriptedInserter{errs: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	w := newTestWriter(t, inserter)

	if err := w.Write(context.Background(), []any{struct{}{}}); err == nil {
		t.Fatalf("expected error")
	}
	if inserter.calls != 1 {
		t.Fatalf("permanent error should not retry, got %d calls", inserter.calls)
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	inserter := &scriptedInserter{errs: []error{transient, transient, transient, transient}}
	w := newTestWriter(t, inserter)

	if err := w.Write(context.Background(), []any{struct{}{}}); err == nil {
		t.Fatalf("expected error after retries")
	}
	if inserter.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inserter.calls)
	}
}

func TestWriterSkipsEmptyBatch(t *testing.T) {
	inserter := &scriptedInserter{}
	w := newTestWriter(t, inserter)
	if err := w.Write(context.Background(), nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if inserter.calls != 0 {
		t.Fatalf("empty batch should not call bigquery")
	}
}

func TestIsRetryableRowErrors(t *testing.T) {
	backend := cbigquery.PutMultiError{
		{InsertID: "MOV-1", Errors: cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}}},
	}
	if !isRetryable(backend) {
		t.Fatalf("backend row errors should retry")
	}
	invalid := cbigquery.PutMultiError{
		{InsertID: "MOV-1", Errors: cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}}},
		{InsertID: "MOV-2", Errors: cbigquery.MultiError{&cbigquery.Error{Reason: "invalid"}}},
	}
	if isRetryable(invalid) {
		t.Fatalf("invalid rows should not retry")
	}
	if isRetryable(errors.New("boom")) {
		t.Fatalf("unknown errors should not retry")
	}
}

func TestNewWriterValidates(t *testing.T) {
	if _, err := NewWriter(nil, "t", RetryPolicy{}); err == nil {
		t.Fatalf("expected error without client")
	}
	if _, err := NewWriter(&scriptedInserter{}, " ", RetryPolicy{}); err == nil {
		t.Fatalf("expected error without table")
	}
}
