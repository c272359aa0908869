package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type stubCollector struct {
	payload any
	err     error
	calls   int
}

func (s *stubCollector) Collect(context.Context) (any, error) {
	s.calls++
	return s.payload, s.err
}

func TestRegistry_DispatchesByToken(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	stub := &stubCollector{payload: map[string]string{"hello": "world"}}
	reg.Register(TypeBasic, stub)

	got, err := reg.Collect(context.Background(), TypeBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("expected collector to be called once, got %d", stub.calls)
	}
	payload, ok := got.(map[string]string)
	if !ok || payload["hello"] != "world" {
		t.Fatalf("unexpected payload: %#v", got)
	}
}

func TestRegistry_UnknownTokenFails(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	_, err := reg.Collect(context.Background(), "bogus_report")
	if !errors.Is(err, ErrUnknownReportType) {
		t.Fatalf("expected ErrUnknownReportType, got %v", err)
	}
}

func TestRegistry_DefaultTokenIsNotRecognized(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	// o default da query não pertence ao conjunto reconhecido
	_, err := reg.Collect(context.Background(), TypeDefault)
	if !errors.Is(err, ErrUnknownReportType) {
		t.Fatalf("expected ErrUnknownReportType for %q, got %v", TypeDefault, err)
	}
}

func TestRegistry_PropagatesCollectorFailure(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	boom := errors.New("kernel said no")
	reg.Register(TypeAdvanced, &stubCollector{err: boom})

	_, err := reg.Collect(context.Background(), TypeAdvanced)
	if !errors.Is(err, boom) {
		t.Fatalf("expected collector error to propagate, got %v", err)
	}
}
