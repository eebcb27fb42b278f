package heap

import (
	"testing"

	"github.com/QiujiangJin/heapalloc/memprovider"
)

// Scenario 5: init; a = alloc(8000) — triggers growth; validate -> ok;
// payload size >= 8000; heap grew beyond its initial single page.
//
// The distilled spec's own worked example suggests a heap of "three pages or
// more" after this allocation; working the reference allocator's own growth
// arithmetic (original_source/allocator.c's num_pages computation) for these
// exact parameters (page_size=4096, one initial page, tail free size 4080)
// gives a minimal growth of exactly one additional page (two pages total),
// which already holds the 8000-byte payload with room to spare. This test
// asserts the tight, arithmetically-derived bound rather than the looser
// scenario text; see DESIGN.md.
func TestLargeAllocTriggersGrowth(t *testing.T) {
	h, p := newTestHeap(t)

	growthBefore := h.Stats().Growths

	a, err := h.Alloc(8000)
	if err != nil {
		t.Fatalf("Alloc(8000): %v", err)
	}

	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	size, err := h.sizeOf(headOf(int64(a)))
	if err != nil {
		t.Fatalf("sizeOf: %v", err)
	}
	if size < 8000 {
		t.Fatalf("payload size = %d, want >= 8000", size)
	}

	if h.Stats().Growths != growthBefore+1 {
		t.Fatalf("Growths = %d, want %d", h.Stats().Growths, growthBefore+1)
	}

	totalBytes := h.end + wordSize - h.base
	if totalBytes < 2*int64(p.PageSize()) {
		t.Fatalf("heap size = %d bytes, want at least two pages (%d)", totalBytes, 2*p.PageSize())
	}
}

// Growth must correctly re-derive the placement block after coalescing with
// a previously free tail: allocate and free a block first so the heap's tail
// is free at growth time, then force growth with a large request and confirm
// the resulting allocation's tags are at the right offsets (the Open
// Question resolution, see DESIGN.md and growth.go).
func TestGrowthCoalescesWithFreeTailBeforePlacement(t *testing.T) {
	h, _ := newTestHeap(t)

	// Consume most of the first page, then free it: it coalesces back
	// into one free block spanning the page, so the tail is free when
	// growth is forced.
	a, err := h.Alloc(3000)
	if err != nil {
		t.Fatalf("Alloc(a): %v", err)
	}
	if err := h.Free(a); err != nil {
		t.Fatalf("Free(a): %v", err)
	}

	b, err := h.Alloc(8000)
	if err != nil {
		t.Fatalf("Alloc(b): %v", err)
	}

	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	size, err := h.sizeOf(headOf(int64(b)))
	if err != nil {
		t.Fatalf("sizeOf: %v", err)
	}
	if size < 8000 {
		t.Fatalf("payload size = %d, want >= 8000", size)
	}
}

// WithGrowthPages establishes a floor on how many pages a single growth
// request asks for.
func TestWithGrowthPagesFloor(t *testing.T) {
	p := memprovider.New()
	h, err := New(p, WithGrowthPages(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := h.Alloc(16); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := h.Alloc(8000); err != nil {
		t.Fatalf("Alloc(8000): %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	totalBytes := h.end + wordSize - h.base
	if totalBytes < 5*int64(p.PageSize()) {
		t.Fatalf("heap size = %d, want at least 5 pages with a growth floor of 4", totalBytes)
	}
}
