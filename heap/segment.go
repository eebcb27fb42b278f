package heap

// SegmentProvider is the narrow contract the allocator core consumes from its
// external collaborator: something that can vend a page-aligned, contiguous
// memory region and grow it on demand. It plays the role Filer plays for a
// disk-backed allocator, narrowed to the operations this package actually
// calls.
//
// A SegmentProvider is not safe for concurrent use, matching the heap's own
// single-threaded contract (see package doc).
type SegmentProvider interface {
	// InitSegment reserves pages*PageSize() bytes, contiguous, and returns
	// the offset of the first byte. It is called exactly once, by New.
	InitSegment(pages int) (base int64, err error)

	// ExtendSegment appends pages*PageSize() bytes, contiguous with the
	// previously reserved region, and returns the offset of the first new
	// byte.
	ExtendSegment(pages int) (newRegionStart int64, err error)

	// SegmentStart returns the offset passed to the original InitSegment
	// call. Used only by Validate.
	SegmentStart() int64

	// SegmentSize returns the total number of bytes reserved so far,
	// across InitSegment and every ExtendSegment call. Used only by
	// Validate.
	SegmentSize() int64

	// PageSize returns the provider's page size: a positive multiple of
	// eight, typically a power of two.
	PageSize() int

	// ReadAt and WriteAt address the region by absolute offset, exactly
	// like os.File.ReadAt/WriteAt. The heap never holds a raw pointer
	// into provider memory; every tag or link access goes through these
	// two methods.
	ReadAt(b []byte, off int64) (n int, err error)
	WriteAt(b []byte, off int64) (n int, err error)
}
