//go:build unix

// Package mmapprovider implements a SegmentProvider backed by a real,
// anonymous OS memory mapping, grounded on the buddy-allocator reference's
// use of golang.org/x/sys/unix.Mmap to carve out a raw, page-aligned region
// for a custom allocator (see DESIGN.md), and on the teacher allocator's
// os.File-backed Filer (lldb/simplefilefiler.go) for the surrounding
// ReadAt/WriteAt/Close shape.
//
// POSIX mmap offers no portable "extend this mapping contiguously in place"
// primitive, so ExtendSegment remaps a larger anonymous region and copies
// the old contents forward. The core allocator only requires that the bytes
// it is handed back are contiguous with the prior region — how the provider
// arranges for that is the provider's concern, not the core's.
package mmapprovider

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/QiujiangJin/heapalloc/heap"
)

const defaultPageSize = 1 << 16 // 64 KiB, a common huge-page-friendly unit

// Provider is a SegmentProvider backed by one anonymous mmap region at a
// time. It is not safe for concurrent use (matching the heap's own
// single-threaded contract); the internal mutex only protects against
// concurrent Close/ReadAt races during teardown.
type Provider struct {
	mu       sync.Mutex
	mem      []byte
	pageSize int
	reserved bool
	closed   bool
}

var _ heap.SegmentProvider = (*Provider)(nil)

// New returns a Provider using the default page size (64 KiB).
func New() *Provider {
	return &Provider{pageSize: defaultPageSize}
}

// NewWithPageSize returns a Provider using a caller-chosen page size, which
// must be a positive multiple of eight.
func NewWithPageSize(pageSize int) (*Provider, error) {
	if pageSize <= 0 || pageSize%8 != 0 {
		return nil, fmt.Errorf("mmapprovider: page size must be a positive multiple of eight, got %d", pageSize)
	}
	return &Provider{pageSize: pageSize}, nil
}

// InitSegment implements heap.SegmentProvider.
func (p *Provider) InitSegment(pages int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reserved {
		return 0, fmt.Errorf("mmapprovider: InitSegment called twice")
	}
	if pages <= 0 {
		return 0, fmt.Errorf("mmapprovider: InitSegment: pages must be positive, got %d", pages)
	}

	mem, err := unix.Mmap(-1, 0, pages*p.pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("mmapprovider: mmap: %w", err)
	}

	p.mem = mem
	p.reserved = true
	return 0, nil
}

// ExtendSegment implements heap.SegmentProvider. It remaps into a larger
// anonymous region, copies the previous contents forward, and releases the
// old mapping.
func (p *Provider) ExtendSegment(pages int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.reserved {
		return 0, fmt.Errorf("mmapprovider: ExtendSegment before InitSegment")
	}
	if pages <= 0 {
		return 0, fmt.Errorf("mmapprovider: ExtendSegment: pages must be positive, got %d", pages)
	}

	oldSize := len(p.mem)
	newSize := oldSize + pages*p.pageSize

	newMem, err := unix.Mmap(-1, 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("mmapprovider: mmap (extend): %w", err)
	}

	copy(newMem, p.mem)
	if err := unix.Munmap(p.mem); err != nil {
		// Best effort: the new mapping is already populated and usable;
		// losing track of the old one is a leak, not a correctness bug.
		_ = err
	}

	p.mem = newMem
	return int64(oldSize), nil
}

// SegmentStart implements heap.SegmentProvider. The mmap-backed provider
// always starts its segment at offset 0 within its own mapping.
func (p *Provider) SegmentStart() int64 { return 0 }

// SegmentSize implements heap.SegmentProvider.
func (p *Provider) SegmentSize() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.mem))
}

// PageSize implements heap.SegmentProvider.
func (p *Provider) PageSize() int { return p.pageSize }

// ReadAt implements heap.SegmentProvider.
func (p *Provider) ReadAt(b []byte, off int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("mmapprovider: ReadAt after Close")
	}
	if off < 0 || off+int64(len(b)) > int64(len(p.mem)) {
		return 0, fmt.Errorf("mmapprovider: ReadAt out of range: off=%d len=%d size=%d", off, len(b), len(p.mem))
	}
	return copy(b, p.mem[off:]), nil
}

// WriteAt implements heap.SegmentProvider.
func (p *Provider) WriteAt(b []byte, off int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("mmapprovider: WriteAt after Close")
	}
	if off < 0 || off+int64(len(b)) > int64(len(p.mem)) {
		return 0, fmt.Errorf("mmapprovider: WriteAt out of range: off=%d len=%d size=%d", off, len(b), len(p.mem))
	}
	return copy(p.mem[off:], b), nil
}

// Close unmaps the provider's backing region. The provider must not be used
// afterward.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.mem == nil {
		p.closed = true
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	p.closed = true
	if err != nil {
		return fmt.Errorf("mmapprovider: munmap: %w", err)
	}
	return nil
}
