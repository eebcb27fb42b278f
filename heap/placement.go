package heap

// findFree walks the free list from the head and returns the payload offset
// of the first block whose size is >= size, or 0 if none fits. This is a
// deliberately unordered, LIFO-by-insertion-time list (see DESIGN.md); an
// implementer chasing better fit quality could substitute segregated free
// lists by size class (as the teacher allocator's FLT does) without changing
// this function's contract.
func (h *Heap) findFree(size int64) (int64, error) {
	cur := h.freeListHead
	for cur != 0 {
		sz, err := h.sizeOf(headOf(cur))
		if err != nil {
			return 0, err
		}
		if sz >= size {
			return cur, nil
		}
		cur, err = h.nextLink(cur)
		if err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// allocate carves requestedSize bytes out of the free block at payload,
// splitting off and re-registering a free remainder when the leftover would
// itself be a valid free block (at least minFreeFootprint bytes); otherwise
// the whole block is handed to the caller, absorbing the slack. It returns
// the payload offset to hand back to the caller (always == payload).
func (h *Heap) allocate(payload, requestedSize int64) (int64, error) {
	freeSize, err := h.sizeOf(headOf(payload))
	if err != nil {
		return 0, err
	}

	if err := h.flDelete(payload, freeSize); err != nil {
		return 0, err
	}

	remainder := freeSize - requestedSize
	if remainder >= 2*wordSize+minFreeFootprint {
		if err := h.writeBlock(payload, requestedSize, true); err != nil {
			return 0, err
		}
		freePayload, err := h.nextBlockPayload(payload)
		if err != nil {
			return 0, err
		}
		freeSize := remainder - 2*wordSize
		if err := h.writeBlock(freePayload, freeSize, false); err != nil {
			return 0, err
		}
		if err := h.flInsert(freePayload, freeSize); err != nil {
			return 0, err
		}
		return payload, nil
	}

	if err := h.writeBlock(payload, freeSize, true); err != nil {
		return 0, err
	}
	return payload, nil
}
