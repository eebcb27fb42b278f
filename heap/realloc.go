package heap

// reallocShrink handles Realloc when newSize <= oldSize: split off a free
// remainder when it would itself be a valid free block, otherwise leave the
// block untouched (the caller keeps the slack, cheaper than a sliver no one
// can use — same trade-off the split in placement.go makes).
func (h *Heap) reallocShrink(payload, oldSize, newSize int64) (Ptr, error) {
	remainder := oldSize - newSize
	if remainder < 2*wordSize+minFreeFootprint {
		return Ptr(payload), nil
	}

	if err := h.writeBlock(payload, newSize, true); err != nil {
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
	if _, err := h.coalesce(freePayload); err != nil {
		return 0, err
	}
	h.bytesInUse -= oldSize - newSize
	return Ptr(payload), nil
}

// reallocGrow handles Realloc when newSize > oldSize. It first tries to
// absorb a free right neighbor in place (grounded on the teacher
// allocator's realloc "in place extend" branch, lldb/falloc.go); only when
// that is not possible does it fall back to copy-and-move through a
// heap-resident temporary buffer, never a fixed-size stack buffer (see the
// Realloc design note in SPEC_FULL.md section 9).
func (h *Heap) reallocGrow(payload, oldSize, newSize int64) (Ptr, error) {
	foot, err := h.footOf(payload)
	if err != nil {
		return 0, err
	}

	if foot != h.end {
		rightPayload, err := h.nextBlockPayload(payload)
		if err != nil {
			return 0, err
		}
		rightAlloc, err := h.allocOf(headOf(rightPayload))
		if err != nil {
			return 0, err
		}
		if !rightAlloc {
			rightSize, err := h.sizeOf(headOf(rightPayload))
			if err != nil {
				return 0, err
			}
			merged := oldSize + rightSize + 2*wordSize
			if merged >= newSize {
				if err := h.flDelete(rightPayload, rightSize); err != nil {
					return 0, err
				}
				remainder := merged - newSize
				if remainder >= 2*wordSize+minFreeFootprint {
					if err := h.writeBlock(payload, newSize, true); err != nil {
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
					h.bytesInUse += newSize - oldSize
				} else {
					if err := h.writeBlock(payload, merged, true); err != nil {
						return 0, err
					}
					h.bytesInUse += merged - oldSize
				}
				return Ptr(payload), nil
			}
		}
	}

	buf := make([]byte, oldSize)
	if _, err := h.provider.ReadAt(buf, payload); err != nil {
		return 0, err
	}

	if err := h.Free(Ptr(payload)); err != nil {
		return 0, err
	}

	newPtr, err := h.Alloc(uintptr(newSize))
	if err != nil {
		return 0, err
	}

	if _, err := h.provider.WriteAt(buf, int64(newPtr)); err != nil {
		return 0, err
	}

	return newPtr, nil
}
