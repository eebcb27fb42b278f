package heap

// Free-list links live inside a free block's own payload: prev at
// payload+0, next at payload+ptrSize. The list is unordered and insertion
// always happens at the head (LIFO), mirroring the teacher allocator's
// link/unlink discipline (lldb/falloc.go) and the reference C allocator's
// insert_node/delete_node.

func (h *Heap) prevLink(payload int64) (int64, error) {
	w, err := h.readWord(payload)
	return int64(w), err
}

func (h *Heap) nextLink(payload int64) (int64, error) {
	w, err := h.readWord(payload + ptrSize)
	return int64(w), err
}

func (h *Heap) setPrevLink(payload, v int64) error {
	return h.writeWord(payload, uint64(v))
}

func (h *Heap) setNextLink(payload, v int64) error {
	return h.writeWord(payload+ptrSize, uint64(v))
}

// flInsert adds the free block at payload, whose payload size is size, to
// the head of the free list, and folds it into the incremental Stats
// counters (bytesFree, largestFree) in the same place the list membership
// itself changes, per SPEC_FULL.md's instrumentation component.
func (h *Heap) flInsert(payload, size int64) error {
	cur := h.freeListHead
	if err := h.setPrevLink(payload, 0); err != nil {
		return err
	}
	if err := h.setNextLink(payload, cur); err != nil {
		return err
	}
	if cur != 0 {
		if err := h.setPrevLink(cur, payload); err != nil {
			return err
		}
	}
	h.freeListHead = payload
	h.freeCount++
	h.bytesFree += size
	if size > h.largestFree {
		h.largestFree = size
	}
	return nil
}

// flDelete removes the free block at payload, whose payload size is size,
// from the free list, maintaining the same incremental counters flInsert
// does. When the removed block was the current largest, largestFree is
// re-derived by scanning the (now shorter) free list rather than the whole
// heap — still O(free blocks), not O(heap size).
func (h *Heap) flDelete(payload, size int64) error {
	prev, err := h.prevLink(payload)
	if err != nil {
		return err
	}
	next, err := h.nextLink(payload)
	if err != nil {
		return err
	}

	switch {
	case prev == 0 && next == 0:
		h.freeListHead = 0
	case prev == 0 && next != 0:
		if err := h.setPrevLink(next, 0); err != nil {
			return err
		}
		h.freeListHead = next
	case prev != 0 && next == 0:
		if err := h.setNextLink(prev, 0); err != nil {
			return err
		}
	default:
		if err := h.setNextLink(prev, next); err != nil {
			return err
		}
		if err := h.setPrevLink(next, prev); err != nil {
			return err
		}
	}
	h.freeCount--
	h.bytesFree -= size
	if size == h.largestFree {
		largest, err := h.recomputeLargestFree()
		if err != nil {
			return err
		}
		h.largestFree = largest
	}
	return nil
}

// recomputeLargestFree walks the free list (not the whole heap) to find the
// largest payload size currently free. Called only when flDelete removes a
// block tied for the current largest, since that is the only case that can
// lower it.
func (h *Heap) recomputeLargestFree() (int64, error) {
	var largest int64
	cur := h.freeListHead
	for cur != 0 {
		size, err := h.sizeOf(headOf(cur))
		if err != nil {
			return 0, err
		}
		if size > largest {
			largest = size
		}
		next, err := h.nextLink(cur)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return largest, nil
}
