package heap

import (
	"testing"

	"github.com/QiujiangJin/heapalloc/memprovider"
)

func newTestHeap(t *testing.T, opts ...Option) (*Heap, *memprovider.Provider) {
	t.Helper()
	p := memprovider.New()
	h, err := New(p, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h, p
}

// Scenario 1: init; a = alloc(16); free(a); validate -> ok, free list
// contains one block of size 4080.
func TestAllocFreeSingleBlockFullyCoalesces(t *testing.T) {
	h, _ := newTestHeap(t)

	a, err := h.Alloc(16)
	if err != nil || a == 0 {
		t.Fatalf("Alloc(16) = %v, %v", a, err)
	}
	if err := h.Free(a); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	st := h.Stats()
	if st.FreeBlocks != 1 {
		t.Fatalf("FreeBlocks = %d, want 1", st.FreeBlocks)
	}
	size, err := h.sizeOf(headOf(h.freeListHead))
	if err != nil {
		t.Fatalf("sizeOf: %v", err)
	}
	if size != 4080 {
		t.Fatalf("free block size = %d, want 4080", size)
	}
}

// Scenario 2: init; a = alloc(16); b = alloc(16); free(a); free(b); validate
// -> ok, free list contains one block of size 4080 (full coalescence).
func TestAllocAllocFreeFreeFullyCoalesces(t *testing.T) {
	h, _ := newTestHeap(t)

	a, err := h.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc(a): %v", err)
	}
	b, err := h.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc(b): %v", err)
	}
	if err := h.Free(a); err != nil {
		t.Fatalf("Free(a): %v", err)
	}
	if err := h.Free(b); err != nil {
		t.Fatalf("Free(b): %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	st := h.Stats()
	if st.FreeBlocks != 1 {
		t.Fatalf("FreeBlocks = %d, want 1", st.FreeBlocks)
	}
	size, err := h.sizeOf(headOf(h.freeListHead))
	if err != nil {
		t.Fatalf("sizeOf: %v", err)
	}
	if size != 4080 {
		t.Fatalf("free block size = %d, want 4080", size)
	}
}

// Scenario 3: same as 2 but freed in reverse order.
func TestAllocAllocFreeReverseOrderFullyCoalesces(t *testing.T) {
	h, _ := newTestHeap(t)

	a, err := h.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc(a): %v", err)
	}
	b, err := h.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc(b): %v", err)
	}
	if err := h.Free(b); err != nil {
		t.Fatalf("Free(b): %v", err)
	}
	if err := h.Free(a); err != nil {
		t.Fatalf("Free(a): %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	st := h.Stats()
	if st.FreeBlocks != 1 {
		t.Fatalf("FreeBlocks = %d, want 1", st.FreeBlocks)
	}
}

// Scenario 4: init; a=alloc(24); b=alloc(24); c=alloc(24); free(b); validate
// -> ok, free list contains two free blocks (the middle hole and the
// trailing remainder).
func TestFreeingMiddleBlockLeavesTwoFreeBlocks(t *testing.T) {
	h, _ := newTestHeap(t)

	a, err := h.Alloc(24)
	if err != nil {
		t.Fatalf("Alloc(a): %v", err)
	}
	b, err := h.Alloc(24)
	if err != nil {
		t.Fatalf("Alloc(b): %v", err)
	}
	_, err = h.Alloc(24)
	if err != nil {
		t.Fatalf("Alloc(c): %v", err)
	}

	if err := h.Free(b); err != nil {
		t.Fatalf("Free(b): %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	st := h.Stats()
	if st.FreeBlocks != 2 {
		t.Fatalf("FreeBlocks = %d, want 2", st.FreeBlocks)
	}

	_ = a
}

func TestAllocZeroReturnsNull(t *testing.T) {
	h, _ := newTestHeap(t)
	p, err := h.Alloc(0)
	if err != nil || p != 0 {
		t.Fatalf("Alloc(0) = %v, %v, want 0, nil", p, err)
	}
}

func TestAllocOverMaxReturnsError(t *testing.T) {
	h, _ := newTestHeap(t)
	_, err := h.Alloc(maxRequest + 1)
	if err == nil {
		t.Fatalf("Alloc(maxRequest+1) succeeded, want error")
	}
	var invalErr *ErrINVAL
	if !asErrINVAL(err, &invalErr) {
		t.Fatalf("Alloc(maxRequest+1) error = %v, want *ErrINVAL", err)
	}
}

func TestFreeNullIsNoop(t *testing.T) {
	h, _ := newTestHeap(t)
	if err := h.Free(0); err != nil {
		t.Fatalf("Free(0): %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAllocatedPayloadsAreAlignedAndSized(t *testing.T) {
	h, _ := newTestHeap(t)
	for _, n := range []uintptr{1, 7, 8, 9, 15, 16, 17, 100} {
		p, err := h.Alloc(n)
		if err != nil {
			t.Fatalf("Alloc(%d): %v", n, err)
		}
		if int64(p)%8 != 0 {
			t.Fatalf("Alloc(%d) = %v not 8-byte aligned", n, p)
		}
		size, err := h.sizeOf(headOf(int64(p)))
		if err != nil {
			t.Fatalf("sizeOf: %v", err)
		}
		want := adjustSize(n)
		if size != want {
			t.Fatalf("Alloc(%d) size = %d, want %d", n, size, want)
		}
	}
}

func asErrINVAL(err error, target **ErrINVAL) bool {
	if e, ok := err.(*ErrINVAL); ok {
		*target = e
		return true
	}
	return false
}
