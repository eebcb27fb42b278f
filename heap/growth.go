package heap

import "github.com/cznic/mathutil"

// grow requests additional pages from the segment provider and splices them
// into the heap so that a block of at least requestedSize payload bytes can
// be placed, then performs that placement and returns the resulting Ptr.
//
// Grounded on the reference C allocator's mymalloc growth branch: compute
// the tail's free size first (it depends only on the heap's current tail
// block), then the byte shortfall, rounded up to a whole number of pages.
func (h *Heap) grow(requestedSize int64) (int64, error) {
	lastAlloc, err := h.allocOf(h.end)
	if err != nil {
		return 0, err
	}

	var tailFreeSize int64
	if !lastAlloc {
		tailFreeSize, err = h.sizeOf(h.end)
		if err != nil {
			return 0, err
		}
	}

	shortfall := requestedSize - tailFreeSize + 2*wordSize
	pageSize := int64(h.provider.PageSize())
	pagesNeeded := (shortfall + pageSize - 1) / pageSize
	pagesNeeded = mathutil.MaxInt64(pagesNeeded, int64(h.config.growthPages))

	newRegionStart, err := h.provider.ExtendSegment(int(pagesNeeded))
	if err != nil {
		return 0, &ErrOOM{Requested: uintptr(requestedSize), Err: err}
	}

	newEnd := newRegionStart + pagesNeeded*pageSize - wordSize
	newSize := newEnd - newRegionStart - wordSize
	newPayload := payloadOf(newRegionStart)
	if err := h.writeBlock(newPayload, newSize, false); err != nil {
		return 0, err
	}
	h.end = newEnd
	h.growthCount++

	if h.logger != nil {
		h.logger.Log(Event{Kind: EventGrowth, Offset: newRegionStart, Size: newSize})
	}

	// coalesce merges the fresh block with a previously-free tail, if
	// any, and returns the payload offset of the surviving block: this
	// is the resolution to the distilled spec's growth Open Question
	// (see DESIGN.md). allocate must run against this offset, not the
	// pre-coalesce placement address, since coalescing may have shifted
	// the containing block's head earlier.
	survivor, err := h.coalesce(newPayload)
	if err != nil {
		return 0, err
	}

	return h.allocate(survivor, requestedSize)
}
