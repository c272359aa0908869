package application

import (
	"context"
	"testing"
	"time"
)

// fullGate nunca abre vaga: simula a geração de relatórios saturada.
type fullGate struct{}

func (fullGate) Enter(ctx context.Context) (func(), bool) {
	<-ctx.Done()
	return nil, false
}

// idleGate sempre tem vaga e conta quantas vezes foi ocupado.
type idleGate struct{ entered int }

func (g *idleGate) Enter(context.Context) (func(), bool) {
	g.entered++
	return func() {}, true
}

func TestCapacityService_EnterWithoutGateIsOpen(t *testing.T) {
	leave, ok := CapacityService{}.Enter(context.Background())
	if !ok {
		t.Fatalf("expected ok with the cap disabled")
	}
	leave()
}

func TestCapacityService_EnterGivesUpAfterTimeout(t *testing.T) {
	svc := CapacityService{Gate: fullGate{}, EnterTimeout: 10 * time.Millisecond}

	start := time.Now()
	if _, ok := svc.Enter(context.Background()); ok {
		t.Fatalf("expected ok=false with the gate saturated")
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("expected the timeout to bound the wait, took %v", waited)
	}
}

func TestCapacityService_EnterWithoutTimeoutFollowsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	if _, ok := (CapacityService{Gate: fullGate{}}).Enter(ctx); ok {
		t.Fatalf("expected ok=false when the context ends first")
	}
}

func TestCapacityService_EnterDelegatesToGate(t *testing.T) {
	gate := &idleGate{}

	leave, ok := CapacityService{Gate: gate}.Enter(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	leave()

	if gate.entered != 1 {
		t.Fatalf("expected a single gate entry, got %d", gate.entered)
	}
}
