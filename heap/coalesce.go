package heap

// coalesce merges the newly-freed block at payload with any physically
// adjacent free neighbors, registers the (possibly now larger) block on the
// free list, and returns the payload offset of the surviving block. Callers
// that need to operate on the block after a free (notably growth, see the
// Open Question discussion in DESIGN.md) must use the returned offset rather
// than the one they passed in: the surviving block may start earlier than
// payload when it absorbed a left neighbor.
//
// This mirrors the teacher allocator's free2, whose four-way case split on
// (left free?, right free?) is the classical Knuth boundary-tag coalescing
// scheme; it is unchanged here from the reference C allocator's
// merge_free_block.
func (h *Heap) coalesce(payload int64) (int64, error) {
	size, err := h.sizeOf(headOf(payload))
	if err != nil {
		return 0, err
	}
	foot, err := h.footOf(payload)
	if err != nil {
		return 0, err
	}

	prevFree, prevPayload := false, int64(0)
	if headOf(payload) != h.base {
		pp, err := h.prevBlockPayload(payload)
		if err != nil {
			return 0, err
		}
		alloc, err := h.allocOf(headOf(pp))
		if err != nil {
			return 0, err
		}
		if !alloc {
			prevFree, prevPayload = true, pp
		}
	}

	nextFree, nextPayload := false, int64(0)
	if foot != h.end {
		np, err := h.nextBlockPayload(payload)
		if err != nil {
			return 0, err
		}
		alloc, err := h.allocOf(headOf(np))
		if err != nil {
			return 0, err
		}
		if !alloc {
			nextFree, nextPayload = true, np
		}
	}

	switch {
	case !prevFree && !nextFree:
		if err := h.flInsert(payload, size); err != nil {
			return 0, err
		}
		return payload, nil

	case !prevFree && nextFree:
		nextSize, err := h.sizeOf(headOf(nextPayload))
		if err != nil {
			return 0, err
		}
		if err := h.flDelete(nextPayload, nextSize); err != nil {
			return 0, err
		}
		newSize := size + nextSize + 2*wordSize
		if err := h.writeBlock(payload, newSize, false); err != nil {
			return 0, err
		}
		if err := h.flInsert(payload, newSize); err != nil {
			return 0, err
		}
		if h.logger != nil {
			h.logger.Log(Event{Kind: EventCoalesce, Offset: headOf(payload), Size: newSize})
		}
		return payload, nil

	case prevFree && !nextFree:
		prevSize, err := h.sizeOf(headOf(prevPayload))
		if err != nil {
			return 0, err
		}
		if err := h.flDelete(prevPayload, prevSize); err != nil {
			return 0, err
		}
		newSize := size + prevSize + 2*wordSize
		if err := h.writeBlock(prevPayload, newSize, false); err != nil {
			return 0, err
		}
		if err := h.flInsert(prevPayload, newSize); err != nil {
			return 0, err
		}
		if h.logger != nil {
			h.logger.Log(Event{Kind: EventCoalesce, Offset: headOf(prevPayload), Size: newSize})
		}
		return prevPayload, nil

	default: // prevFree && nextFree
		prevSize, err := h.sizeOf(headOf(prevPayload))
		if err != nil {
			return 0, err
		}
		nextSize, err := h.sizeOf(headOf(nextPayload))
		if err != nil {
			return 0, err
		}
		if err := h.flDelete(prevPayload, prevSize); err != nil {
			return 0, err
		}
		if err := h.flDelete(nextPayload, nextSize); err != nil {
			return 0, err
		}
		newSize := size + prevSize + nextSize + 4*wordSize
		if err := h.writeBlock(prevPayload, newSize, false); err != nil {
			return 0, err
		}
		if err := h.flInsert(prevPayload, newSize); err != nil {
			return 0, err
		}
		if h.logger != nil {
			h.logger.Log(Event{Kind: EventCoalesce, Offset: headOf(prevPayload), Size: newSize})
		}
		return prevPayload, nil
	}
}
