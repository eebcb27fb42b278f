// Package memprovider implements an in-process, growable SegmentProvider
// backed by a sparse page table of byte-slice pages, rather than an OS
// mapping. It is grounded on the teacher allocator's MemFiler
// (lldb/memfiler.go): a paged map[int64]*[pgSize]byte so that a large,
// mostly-empty segment does not actually allocate memory for its unwritten
// middle.
//
// Provider is meant for tests and for embedding the heap allocator inside
// another Go process's own memory (it never calls mmap); see mmapprovider
// for a real OS-backed SegmentProvider.
package memprovider

import (
	"fmt"

	"github.com/cznic/mathutil"
	"github.com/QiujiangJin/heapalloc/heap"
)

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

var zeroPage [pageSize]byte

// Provider is a SegmentProvider whose backing storage is a sparse table of
// Go byte-array pages. Its zero value is not usable (it has no page table and
// a page size of zero); obtain a Provider from New, which uses the fixed
// 4096-byte page size.
type Provider struct {
	pages    map[int64]*[pageSize]byte
	size     int64
	pgSz     int
	pgBits   uint
	pgMask   int64
	reserved bool
}

var _ heap.SegmentProvider = (*Provider)(nil)

// New returns a Provider using the default page size (4096 bytes).
func New() *Provider {
	return &Provider{pages: map[int64]*[pageSize]byte{}, pgSz: pageSize, pgBits: pageBits, pgMask: pageMask}
}

// InitSegment implements heap.SegmentProvider.
func (p *Provider) InitSegment(pages int) (int64, error) {
	if p.reserved {
		return 0, fmt.Errorf("memprovider: InitSegment called twice")
	}
	if pages <= 0 {
		return 0, fmt.Errorf("memprovider: InitSegment: pages must be positive, got %d", pages)
	}
	p.reserved = true
	p.size = int64(pages) * int64(p.pgSz)
	return 0, nil
}

// ExtendSegment implements heap.SegmentProvider.
func (p *Provider) ExtendSegment(pages int) (int64, error) {
	if !p.reserved {
		return 0, fmt.Errorf("memprovider: ExtendSegment before InitSegment")
	}
	if pages <= 0 {
		return 0, fmt.Errorf("memprovider: ExtendSegment: pages must be positive, got %d", pages)
	}
	start := p.size
	p.size += int64(pages) * int64(p.pgSz)
	return start, nil
}

// SegmentStart implements heap.SegmentProvider. The in-process provider
// always starts its segment at offset 0.
func (p *Provider) SegmentStart() int64 { return 0 }

// SegmentSize implements heap.SegmentProvider.
func (p *Provider) SegmentSize() int64 { return p.size }

// PageSize implements heap.SegmentProvider.
func (p *Provider) PageSize() int { return p.pgSz }

// ReadAt implements heap.SegmentProvider.
func (p *Provider) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(b)) > p.size {
		return 0, fmt.Errorf("memprovider: ReadAt out of range: off=%d len=%d size=%d", off, len(b), p.size)
	}
	n := 0
	pgI := off >> p.pgBits
	pgO := int(off & p.pgMask)
	rem := len(b)
	for rem != 0 {
		pg := p.pages[pgI]
		if pg == nil {
			pg = &zeroPage
		}
		nc := copy(b[n:n+mathutil.Min(rem, p.pgSz-pgO)], pg[pgO:])
		pgI++
		pgO = 0
		rem -= nc
		n += nc
	}
	return n, nil
}

// WriteAt implements heap.SegmentProvider.
func (p *Provider) WriteAt(b []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(b)) > p.size {
		return 0, fmt.Errorf("memprovider: WriteAt out of range: off=%d len=%d size=%d", off, len(b), p.size)
	}
	n := 0
	pgI := off >> p.pgBits
	pgO := int(off & p.pgMask)
	rem := len(b)
	for rem != 0 {
		pg := p.pages[pgI]
		if pg == nil {
			pg = new([pageSize]byte)
			p.pages[pgI] = pg
		}
		nc := copy(pg[pgO:], b[n:])
		pgI++
		pgO = 0
		rem -= nc
		n += nc
	}
	return n, nil
}
