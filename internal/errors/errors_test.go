package errors

import (
	"errors"
	"testing"
)

func TestWireErrorCarriesPayloadFields(t *testing.T) {
	cause := errors.New("unexpected token")
	e := New(ErrTransform, "failed to parse module", cause).WithFrame("1 | const x =").WithStack("at transform")

	wire := e.WireError()
	if wire.Message != "failed to parse module" {
		t.Fatalf("got message %q", wire.Message)
	}
	if wire.Frame != "1 | const x =" {
		t.Fatalf("got frame %q", wire.Frame)
	}
	if wire.Stack != "at transform" {
		t.Fatalf("got stack %q", wire.Stack)
	}
}

func TestErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("boom")
	e := New(ErrIO, "read failed", cause)
	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to see through Unwrap to cause")
	}
}
