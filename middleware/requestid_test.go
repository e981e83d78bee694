package middleware

import (
	"context"
	"testing"

	"github.com/broady/restproxy/testutil"
	"github.com/google/uuid"
)

func TestRequestID_Generated(t *testing.T) {
	rec := testutil.NewRecorder(nil)
	w := buildWidgets(t, rec, RequestID(""))

	for i := 0; i < 2; i++ {
		if err := w.Delete(context.Background(), "1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	}
	reqs := rec.Requests()
	first := reqs[0].Header.Get(DefaultRequestIDHeader)
	second := reqs[1].Header.Get(DefaultRequestIDHeader)
	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("expected a UUID, got %q: %v", first, err)
	}
	if first == second {
		t.Errorf("expected distinct ids, got %q twice", first)
	}
}

func TestRequestID_FromContext(t *testing.T) {
	rec := testutil.NewRecorder(nil)
	w := buildWidgets(t, rec, RequestID("X-Correlation-Id"))

	ctx := WithRequestID(context.Background(), "inbound-7")
	if err := w.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	testutil.AssertHeader(t, rec.Last(t), "X-Correlation-Id", "inbound-7")
}
