package heap

import (
	"sort"

	"github.com/cznic/sortutil"
)

// Validate walks the entire heap once, checking every invariant from the
// data model (tiling, head/foot agreement, no two adjacent free blocks, free
// list membership and acyclicity), and returns the first violation found as
// an *ErrCORRUPT, or nil if the heap is structurally sound.
//
// Grounded on the teacher allocator's Verify (lldb/falloc.go) and the
// reference C allocator's validate_heap: walk the managed region once
// collecting the free blocks actually present, then cross-check that set
// against the free list using github.com/cznic/sortutil to sort offsets for
// the comparison, exactly as falloc_test.go's verification helpers do.
func (h *Heap) Validate() error {
	if h.base != h.provider.SegmentStart() {
		return &ErrCORRUPT{Msg: "base does not match segment start", Offset: h.base}
	}
	wantEnd := h.provider.SegmentStart() + h.provider.SegmentSize() - wordSize
	if h.end != wantEnd {
		return &ErrCORRUPT{Msg: "end does not match segment bounds", Offset: h.end}
	}

	walkedFree := make([]int64, 0)
	cur := payloadOf(h.base)
	prevWasFree := false
	for {
		headTag := headOf(cur)
		size, err := h.sizeOf(headTag)
		if err != nil {
			return err
		}
		if size <= 0 || size%8 != 0 {
			return &ErrCORRUPT{Msg: "block size not a positive multiple of eight", Offset: headTag}
		}

		alloc, err := h.allocOf(headTag)
		if err != nil {
			return err
		}

		foot := cur + size
		footSize, err := h.sizeOf(foot)
		if err != nil {
			return err
		}
		footAlloc, err := h.allocOf(foot)
		if err != nil {
			return err
		}
		if footSize != size || footAlloc != alloc {
			return &ErrCORRUPT{Msg: "head and foot tags disagree", Offset: headTag}
		}

		if !alloc {
			if prevWasFree {
				return &ErrCORRUPT{Msg: "two adjacent free blocks were not coalesced", Offset: headTag}
			}
			walkedFree = append(walkedFree, cur)
		}
		prevWasFree = !alloc

		if foot == h.end {
			break
		}
		if foot > h.end {
			return &ErrCORRUPT{Msg: "block overruns heap end", Offset: headTag}
		}
		cur = foot + 2*wordSize
	}

	listed, err := h.walkFreeList()
	if err != nil {
		return err
	}

	if len(listed) != len(walkedFree) {
		return &ErrCORRUPT{Msg: "free list size does not match free blocks found walking the heap", Offset: h.freeListHead}
	}

	sort.Sort(sortutil.Int64Slice(walkedFree))
	sort.Sort(sortutil.Int64Slice(listed))
	for i := range walkedFree {
		if walkedFree[i] != listed[i] {
			return &ErrCORRUPT{Msg: "free list membership does not match blocks found walking the heap", Offset: listed[i]}
		}
	}

	return nil
}

// walkFreeList walks the free list from the head, checking acyclicity (via a
// visited set of payload offsets), that every listed block is free, and that
// the head's prev link is null.
func (h *Heap) walkFreeList() ([]int64, error) {
	if h.freeListHead != 0 {
		prev, err := h.prevLink(h.freeListHead)
		if err != nil {
			return nil, err
		}
		if prev != 0 {
			return nil, &ErrCORRUPT{Msg: "free list head has a non-null prev link", Offset: h.freeListHead}
		}
	}

	visited := make(map[int64]bool)
	var out []int64
	cur := h.freeListHead
	for cur != 0 {
		if visited[cur] {
			return nil, &ErrCORRUPT{Msg: "free list is cyclic", Offset: cur}
		}
		visited[cur] = true

		alloc, err := h.allocOf(headOf(cur))
		if err != nil {
			return nil, err
		}
		if alloc {
			return nil, &ErrCORRUPT{Msg: "free list contains an allocated block", Offset: cur}
		}

		out = append(out, cur)
		next, err := h.nextLink(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return out, nil
}
