package stackmem

import (
	"errors"
	"testing"
)

func TestAllocReturnLIFO(t *testing.T) {
	s, err := New(1 << 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	a, ok := s.Alloc(100)
	if !ok {
		t.Fatal("first alloc failed")
	}
	b, ok := s.Alloc(200)
	if !ok {
		t.Fatal("second alloc failed")
	}

	// Aligned sizes: 112 + 208
	if got, want := s.Available(), int64(1<<16-112-208); got != want {
		t.Errorf("Available = %d, want %d", got, want)
	}

	// Out-of-order return is rejected.
	if err := s.Return(a); !errors.Is(err, ErrNotTop) {
		t.Fatalf("expected ErrNotTop for out-of-order return, got %v", err)
	}

	if err := s.Return(b); err != nil {
		t.Fatalf("Return(b): %v", err)
	}
	if err := s.Return(a); err != nil {
		t.Fatalf("Return(a): %v", err)
	}

	if got := s.Available(); got != 1<<16 {
		t.Errorf("Available after full return = %d, want %d", got, 1<<16)
	}
}

func TestAllocReuseSameBlock(t *testing.T) {
	s, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	a, ok := s.Alloc(4096)
	if !ok {
		t.Fatal("alloc failed")
	}
	ptrA := &a[0]

	if err := s.Return(a); err != nil {
		t.Fatalf("Return: %v", err)
	}

	b, ok := s.Alloc(4096)
	if !ok {
		t.Fatal("realloc failed")
	}
	if &b[0] != ptrA {
		t.Error("expected the same backing block to be reused")
	}

	stats := s.Stats()
	if stats.HighWater != 4096 {
		t.Errorf("HighWater = %d, want 4096", stats.HighWater)
	}
	if stats.TotalAllocs != 2 {
		t.Errorf("TotalAllocs = %d, want 2", stats.TotalAllocs)
	}
}

func TestAllocTooLarge(t *testing.T) {
	s, err := New(1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, ok := s.Alloc(2048); ok {
		t.Fatal("oversized alloc should fail")
	}

	// Fill, then overflow.
	if _, ok := s.Alloc(1024); !ok {
		t.Fatal("exact-fit alloc should succeed")
	}
	if _, ok := s.Alloc(16); ok {
		t.Fatal("alloc from full stack should fail")
	}
}

func TestZeroSizedStack(t *testing.T) {
	s, err := New(0)
	if err != nil {
		t.Fatalf("New(0): %v", err)
	}
	defer s.Close()

	if _, ok := s.Alloc(1); ok {
		t.Fatal("zero-sized stack must reject every allocation")
	}
	if s.Available() != 0 {
		t.Errorf("Available = %d, want 0", s.Available())
	}
}

func TestReturnForeignBuffer(t *testing.T) {
	s, err := New(1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	foreign := make([]byte, 64)
	if err := s.Return(foreign); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestCloseInvalidatesStack(t *testing.T) {
	s, err := New(1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, ok := s.Alloc(16); ok {
		t.Fatal("alloc from closed stack should fail")
	}
}
