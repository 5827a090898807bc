package query

import (
	"testing"
	"time"

	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/son"
)

func TestFuturePollsFalseUntilRespond(t *testing.T) {
	responder, future := New[int]()
	if future.Poll() {
		t.Fatal("expected Poll to be false before Respond")
	}
	if _, ok := future.Get(); ok {
		t.Fatal("expected Get to report not-ready before Respond")
	}
	responder.Respond(42)
	if !future.Poll() {
		t.Fatal("expected Poll to be true after Respond")
	}
	v, ok := future.Get()
	if !ok || v != 42 {
		t.Fatalf("got (%v, %v), want (42, true)", v, ok)
	}
}

func TestFutureGetDoesNotConsume(t *testing.T) {
	responder, future := New[string]()
	responder.Respond("hello")
	if v, ok := future.Get(); !ok || v != "hello" {
		t.Fatalf("first Get: got (%v, %v)", v, ok)
	}
	if v, ok := future.Get(); !ok || v != "hello" {
		t.Fatalf("second Get: got (%v, %v)", v, ok)
	}
}

func TestFutureTakeConsumesOnce(t *testing.T) {
	responder, future := New[int]()
	responder.Respond(7)
	v, ok := future.Take()
	if !ok || v != 7 {
		t.Fatalf("got (%v, %v), want (7, true)", v, ok)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Take to panic")
		}
	}()
	future.Take()
}

func TestFutureGetAfterTakePanics(t *testing.T) {
	responder, future := New[int]()
	responder.Respond(1)
	future.Take()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Get after Take to panic")
		}
	}()
	future.Get()
}

func TestRespondTwicePanics(t *testing.T) {
	responder, _ := New[int]()
	responder.Respond(1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Respond to panic")
		}
	}()
	responder.Respond(2)
}

func TestFutureWaitBlocksUntilRespond(t *testing.T) {
	responder, future := New[int]()
	resultCh := make(chan int, 1)
	go func() {
		resultCh <- future.Wait()
	}()

	select {
	case <-resultCh:
		t.Fatal("Wait returned before Respond was called")
	case <-time.After(20 * time.Millisecond):
	}

	responder.Respond(99)
	select {
	case v := <-resultCh:
		if v != 99 {
			t.Fatalf("got %v, want 99", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Respond")
	}
}

func TestFutureDoneChannelClosesOnRespond(t *testing.T) {
	responder, future := New[int]()
	select {
	case <-future.Done():
		t.Fatal("Done channel should not be closed yet")
	default:
	}
	responder.Respond(1)
	select {
	case <-future.Done():
	default:
		t.Fatal("Done channel should be closed after Respond")
	}
}

func TestNewBoolFuture(t *testing.T) {
	responder, future := NewBoolFuture()
	responder.Respond(true)
	v, ok := future.Get()
	if !ok || v != true {
		t.Fatalf("got (%v, %v), want (true, true)", v, ok)
	}
}

func TestNewFlowControlFutureUnsetIsNil(t *testing.T) {
	responder, future := NewFlowControlFuture()
	responder.Respond(nil)
	v, ok := future.Get()
	if !ok || v != nil {
		t.Fatalf("got (%v, %v), want (nil, true)", v, ok)
	}
}

func TestNewFlowControlFutureSetValue(t *testing.T) {
	responder, future := NewFlowControlFuture()
	val := son.Number(3.5)
	responder.Respond(&val)
	v, ok := future.Get()
	if !ok || v == nil || v.AsNumber() != 3.5 {
		t.Fatalf("got (%v, %v), want a SoN(3.5)", v, ok)
	}
}

func TestNewMixControlFuture(t *testing.T) {
	responder, future := NewMixControlFuture()
	val := posfloat.MustNew(0.75)
	responder.Respond(&val)
	v, ok := future.Get()
	if !ok || v == nil || v.Float32() != 0.75 {
		t.Fatalf("got (%v, %v), want a PosFloat(0.75)", v, ok)
	}
}
