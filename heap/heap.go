// Package heap implements a general-purpose dynamic memory allocator over a
// contiguous region vended by a SegmentProvider: boundary-tagged blocks,
// first-fit placement with splitting, boundary-tag coalescing, and on-demand
// growth.
//
// The allocator is strictly single-threaded; see the concurrency section
// (section 5) of SPEC_FULL.md for the rationale and for how to add external
// locking if needed.
package heap

import "math"

// maxRequest rejects absurd allocation requests, mirroring the reference
// allocator's INT_MAX sentinel.
const maxRequest = math.MaxInt32

// Heap is a single allocator instance: one contiguous region, one free list,
// constructed by New. Its zero value is not usable; always obtain a Heap via
// New.
type Heap struct {
	provider SegmentProvider
	config   config
	logger   Logger

	base         int64 // offset of the first block's head tag
	end          int64 // offset of the last block's foot tag
	freeListHead int64 // payload offset of the free list's head, 0 if empty

	// Incrementally maintained counters backing Stats; see stats.go and
	// the flInsert/flDelete bookkeeping in freelist.go.
	allocCount  int64
	freeCount   int64
	growthCount int64
	bytesInUse  int64
	bytesFree   int64
	largestFree int64
}

// New constructs a Heap over provider, requesting its first page (or
// WithInitialPages(n) pages) immediately. The returned heap contains a
// single free block spanning the reserved region.
func New(provider SegmentProvider, opts ...Option) (*Heap, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Heap{
		provider: provider,
		config:   cfg,
		logger:   cfg.logger,
	}

	base, err := provider.InitSegment(cfg.initialPages)
	if err != nil {
		return nil, &ErrOOM{Requested: uintptr(cfg.initialPages) * uintptr(provider.PageSize()), Err: err}
	}

	pageBytes := int64(cfg.initialPages) * int64(provider.PageSize())
	h.base = base
	h.end = base + pageBytes - wordSize

	payload := payloadOf(base)
	size := pageBytes - 2*wordSize
	if err := h.writeBlock(payload, size, false); err != nil {
		return nil, err
	}
	if err := h.setPrevLink(payload, 0); err != nil {
		return nil, err
	}
	if err := h.setNextLink(payload, 0); err != nil {
		return nil, err
	}
	h.freeListHead = payload
	h.freeCount = 1
	h.bytesFree = size
	h.largestFree = size

	return h, nil
}

// adjustSize maps a caller-requested size to the size actually carried by
// the block: at least enough to hold the two free-list links a block
// acquires once freed, and always rounded up to a multiple of eight.
func adjustSize(n uintptr) int64 {
	if n <= minFreeFootprint {
		return minFreeFootprint
	}
	return alignUp8(int64(n))
}

// Alloc returns a Ptr to a newly allocated, eight-byte aligned payload of at
// least n bytes, or Ptr(0) if n is zero. Requests larger than maxRequest, or
// that the segment provider cannot satisfy by growing, return a non-nil
// error alongside Ptr(0).
func (h *Heap) Alloc(n uintptr) (Ptr, error) {
	if n == 0 {
		return 0, nil
	}
	if n > maxRequest {
		return 0, &ErrINVAL{Msg: "alloc size exceeds maximum request", Arg: n}
	}

	size := adjustSize(n)

	p, err := h.findFree(size)
	if err != nil {
		return 0, err
	}

	var result int64
	if p != 0 {
		result, err = h.allocate(p, size)
	} else {
		result, err = h.grow(size)
	}
	if err != nil {
		return 0, err
	}

	// The block may carry more than size when allocate absorbed a
	// remainder too small to split off; count what the block really holds,
	// the same amount Free later subtracts.
	allocated, err := h.sizeOf(headOf(result))
	if err != nil {
		return 0, err
	}
	h.allocCount++
	h.bytesInUse += allocated
	if err := h.maybeValidate(); err != nil {
		return 0, err
	}
	return Ptr(result), nil
}

// Free deallocates the block p refers to and coalesces it with any
// physically adjacent free neighbors. Ptr(0) is a no-op.
//
// p must have been returned by Alloc or Realloc on this Heap and must not
// already be free; violating this is undefined behavior per the
// error-handling design in SPEC_FULL.md section 7 (Validate can detect the
// resulting damage post-hoc, but Free itself does not).
func (h *Heap) Free(p Ptr) error {
	if p == 0 {
		return nil
	}

	payload := int64(p)
	size, err := h.sizeOf(headOf(payload))
	if err != nil {
		return err
	}
	if err := h.writeBlock(payload, size, false); err != nil {
		return err
	}
	if _, err := h.coalesce(payload); err != nil {
		return err
	}

	h.allocCount--
	h.bytesInUse -= size
	return h.maybeValidate()
}

// Realloc resizes the block p refers to, preserving its leading contents up
// to the smaller of the old and new sizes, and returns a Ptr to the
// (possibly moved) block. Realloc(0, n) behaves as Alloc(n); Realloc(p, 0)
// behaves as Free(p) and returns Ptr(0).
func (h *Heap) Realloc(p Ptr, n uintptr) (Ptr, error) {
	if p == 0 {
		return h.Alloc(n)
	}
	if n == 0 {
		return 0, h.Free(p)
	}
	if n > maxRequest {
		return 0, &ErrINVAL{Msg: "realloc size exceeds maximum request", Arg: n}
	}

	payload := int64(p)
	newSize := adjustSize(n)
	oldSize, err := h.sizeOf(headOf(payload))
	if err != nil {
		return 0, err
	}

	var result Ptr
	if newSize <= oldSize {
		result, err = h.reallocShrink(payload, oldSize, newSize)
	} else {
		result, err = h.reallocGrow(payload, oldSize, newSize)
	}
	if err != nil {
		return 0, err
	}
	if err := h.maybeValidate(); err != nil {
		return 0, err
	}
	return result, nil
}

// Stats returns a point-in-time snapshot of the heap's bookkeeping counters.
// It is O(1): it never walks the heap. Use Validate for a full structural
// check.
func (h *Heap) Stats() Stats {
	return Stats{
		TotalBytes:           h.end + wordSize - h.base,
		BytesInUse:           h.bytesInUse,
		BytesFree:            h.bytesFree,
		AllocBlocks:          h.allocCount,
		FreeBlocks:           h.freeCount,
		Growths:              h.growthCount,
		LargestFreeBlockSize: h.largestFree,
	}
}

func (h *Heap) maybeValidate() error {
	if !h.config.validateOnOp {
		return nil
	}
	if err := h.Validate(); err != nil {
		if h.logger != nil {
			h.logger.Log(Event{Kind: EventCorrupt, Err: err})
		}
		panic(err)
	}
	return nil
}
