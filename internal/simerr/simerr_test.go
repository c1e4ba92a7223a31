package simerr

import (
	"errors"
	"testing"
)

func TestTickMismatchIsMatchable(t *testing.T) {
	err := NewTickMismatch(5, 7)
	if !errors.Is(err, ErrTickMismatch) {
		t.Fatalf("expected errors.Is to match ErrTickMismatch")
	}
	var tm *TickMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("expected errors.As to extract TickMismatchError")
	}
	if tm.Expected != 5 || tm.Actual != 7 {
		t.Fatalf("unexpected fields: %+v", tm)
	}
}

func TestSubsystemErrorWrapsUnderlying(t *testing.T) {
	underlying := errors.New("boom")
	err := WrapSubsystem("pricing", underlying)
	if !errors.Is(err, underlying) {
		t.Fatalf("expected wrapped error to unwrap to underlying")
	}
}

func TestStorageWrapping(t *testing.T) {
	underlying := errors.New("disk full")
	err := Storage(underlying)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected errors.Is to match ErrStorage")
	}
}

func TestNilWrappingReturnsNil(t *testing.T) {
	if Storage(nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
	if Encoding(nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
	if WrapSubsystem("x", nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
}
