package device

import (
	"math"
	"testing"
)

func TestSgemm(t *testing.T) {
	s, err := NewStream(0, "blas")
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer s.Close()

	h, err := NewBlasHandle(0)
	if err != nil {
		t.Fatalf("NewBlasHandle: %v", err)
	}
	h.SetStream(s)

	// 2x3 * 3x2 = 2x2
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 8, 9, 10, 11, 12}
	c := make([]float32, 4)

	if err := h.Sgemm(2, 2, 3, 1, a, b, 0, c); err != nil {
		t.Fatalf("Sgemm: %v", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	want := []float32{58, 64, 139, 154}
	for i := range want {
		if math.Abs(float64(c[i]-want[i])) > 1e-5 {
			t.Errorf("c[%d] = %v, want %v", i, c[i], want[i])
		}
	}
}

func TestSgemmShapeMismatch(t *testing.T) {
	s, _ := NewStream(0, "blas")
	defer s.Close()

	h, _ := NewBlasHandle(0)
	h.SetStream(s)

	if err := h.Sgemm(2, 2, 3, 1, make([]float32, 2), make([]float32, 6), 0, make([]float32, 4)); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestSgemmRequiresStream(t *testing.T) {
	h, _ := NewBlasHandle(0)
	if err := h.Sgemm(1, 1, 1, 1, []float32{1}, []float32{1}, 0, []float32{0}); err == nil {
		t.Fatal("expected error without a bound stream")
	}
}
