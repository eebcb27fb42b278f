package heap

// Stats is a point-in-time snapshot of a Heap's bookkeeping counters,
// grounded on the teacher allocator's AllocStats (lldb/falloc.go:
// TotalAtoms/AllocBytes/AllocAtoms/FreeAtoms), extended with the
// payload-byte and largest-free-block fields SPEC_FULL.md's data model
// calls for — there is no block-relocation concept here, so Relocations
// has no counterpart.
type Stats struct {
	// TotalBytes is the size of the entire managed region, head tag to
	// foot tag inclusive, across every page reserved so far.
	TotalBytes int64

	// BytesInUse is the sum of the payload sizes of currently live
	// allocations (tag overhead not included).
	BytesInUse int64

	// BytesFree is the sum of the payload sizes of blocks currently on
	// the free list (tag overhead not included).
	BytesFree int64

	// AllocBlocks is the number of currently live allocations.
	AllocBlocks int64

	// FreeBlocks is the number of free blocks currently on the free
	// list.
	FreeBlocks int64

	// Growths is the number of times the heap has requested additional
	// pages from its segment provider.
	Growths int64

	// LargestFreeBlockSize is the payload size of the largest block
	// currently on the free list, or 0 if the free list is empty.
	LargestFreeBlockSize int64
}
