package heap

import "encoding/binary"

const (
	// wordSize is the width of a boundary tag: one machine word, eight
	// bytes, matching the data model's alignment guarantee.
	wordSize = 8

	// ptrSize is the width of a single free-list link (prev or next),
	// stored as an 8-byte offset into the segment. Two of them (prev and
	// next) is the minimum payload a free block must be able to hold.
	ptrSize = 8

	// minFreeFootprint is the smallest payload size a free block can
	// have: enough to hold the two free-list links.
	minFreeFootprint = 2 * ptrSize

	// allocFlag is bit 0 of a boundary tag.
	allocFlag = uint64(1)

	// sizeMask recovers the size field of a boundary tag; the low three
	// bits are reserved (only bit 0 is currently used) because every
	// size is a multiple of eight.
	sizeMask = ^uint64(7)
)

// Ptr is an opaque handle to an allocated payload: an offset into the
// segment the heap's provider backs, never a raw Go pointer. Ptr(0) is the
// canonical "no block" value, returned by Alloc/Realloc on failure, accepted
// by Free as a no-op, and treated by Realloc as a request for a fresh
// allocation.
type Ptr int64

// byteOrder is the encoding used for every boundary tag and free-list link.
// The spec only requires internal consistency, not a wire format, so one
// fixed order is used throughout rather than the host's native order.
var byteOrder = binary.LittleEndian

func (h *Heap) readWord(off int64) (uint64, error) {
	var b [wordSize]byte
	if _, err := h.provider.ReadAt(b[:], off); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b[:]), nil
}

func (h *Heap) writeWord(off int64, v uint64) error {
	var b [wordSize]byte
	byteOrder.PutUint64(b[:], v)
	_, err := h.provider.WriteAt(b[:], off)
	return err
}

// writeTag stores size|alloc at off. size must already be a multiple of
// eight; alloc must be 0 or 1.
func (h *Heap) writeTag(off int64, size int64, alloc uint64) error {
	return h.writeWord(off, uint64(size)|alloc)
}

// sizeOf returns the size encoded in the tag at off, with the allocation
// flag masked out.
func (h *Heap) sizeOf(off int64) (int64, error) {
	w, err := h.readWord(off)
	if err != nil {
		return 0, err
	}
	return int64(w & sizeMask), nil
}

// allocOf returns the allocation flag encoded in the tag at off.
func (h *Heap) allocOf(off int64) (bool, error) {
	w, err := h.readWord(off)
	if err != nil {
		return false, err
	}
	return w&allocFlag != 0, nil
}

// payloadOf returns the payload offset for a block whose head tag is at
// head.
func payloadOf(head int64) int64 { return head + wordSize }

// headOf returns the head-tag offset for a block whose payload starts at
// payload.
func headOf(payload int64) int64 { return payload - wordSize }

// footOf returns the foot-tag offset for the block whose payload starts at
// payload.
func (h *Heap) footOf(payload int64) (int64, error) {
	size, err := h.sizeOf(headOf(payload))
	if err != nil {
		return 0, err
	}
	return payload + size, nil
}

// nextBlockPayload returns the payload offset of the block physically
// following the one starting at payload. The caller must ensure payload is
// not the heap's last block.
func (h *Heap) nextBlockPayload(payload int64) (int64, error) {
	foot, err := h.footOf(payload)
	if err != nil {
		return 0, err
	}
	return foot + 2*wordSize, nil
}

// prevBlockPayload returns the payload offset of the block physically
// preceding the one starting at payload, by reading the previous block's
// foot tag. The caller must ensure payload is not the heap's first block.
func (h *Heap) prevBlockPayload(payload int64) (int64, error) {
	prevFoot := payload - 2*wordSize
	size, err := h.sizeOf(prevFoot)
	if err != nil {
		return 0, err
	}
	return prevFoot - size, nil
}

// writeBlock writes matching head and foot tags for a block whose payload
// starts at payload and whose payload size is size.
func (h *Heap) writeBlock(payload, size int64, alloc bool) error {
	var flag uint64
	if alloc {
		flag = allocFlag
	}
	if err := h.writeTag(headOf(payload), size, flag); err != nil {
		return err
	}
	return h.writeTag(payload+size, size, flag)
}

// alignUp8 rounds n up to the nearest multiple of eight.
func alignUp8(n int64) int64 {
	return (n + 7) &^ 7
}
