package index

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// pager owns the memory-mapped B+-tree file. Reads go straight through the
// mapping; writes mutate the mapping in place and the caller is
// responsible for msync'ing the pages it touched, per spec.md §4.5.
type pager struct {
	mu       sync.RWMutex
	file     *os.File
	data     []byte
	numPages uint32
}

func openPager(path string) (*pager, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, rerrors.IO("open index file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, rerrors.IO("stat index file", err)
	}

	created := false
	if info.Size() == 0 {
		created = true
		if err := f.Truncate(PageSize); err != nil {
			f.Close()
			return nil, false, rerrors.IO("truncate index file", err)
		}
		info, err = f.Stat()
		if err != nil {
			f.Close()
			return nil, false, rerrors.IO("stat index file", err)
		}
	}

	p := &pager{file: f}
	if err := p.remap(int(info.Size())); err != nil {
		f.Close()
		return nil, false, err
	}
	return p, created, nil
}

func (p *pager) remap(size int) error {
	if p.data != nil {
		if err := unix.Munmap(p.data); err != nil {
			return rerrors.IO("munmap index file", err)
		}
		p.data = nil
	}
	data, err := unix.Mmap(int(p.file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return rerrors.IO("mmap index file", err)
	}
	p.data = data
	p.numPages = uint32(size / PageSize)
	return nil
}

// allocate extends the backing file by one page and remaps, returning the
// new page's number. This is a pure bump allocator: ReedBase's B+-tree never
// frees a page (Delete does not merge nodes) and keeps no free list (a
// documented simplification — see DESIGN.md); the file only ever grows.
func (p *pager) allocate() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	newSize := int(p.numPages+1) * PageSize
	if err := p.file.Truncate(int64(newSize)); err != nil {
		return 0, rerrors.IO("grow index file", err)
	}
	if err := p.remap(newSize); err != nil {
		return 0, err
	}
	return p.numPages - 1, nil
}

// page returns the raw PageSize-byte slice backing page n. Callers must
// hold the pager's lock appropriately for their access pattern.
func (p *pager) page(n uint32) []byte {
	start := int(n) * PageSize
	return p.data[start : start+PageSize]
}

func (p *pager) readHeader(n uint32) pageHeader {
	return decodeHeader(p.page(n)[:HeaderSize])
}

func (p *pager) readBody(n uint32) []byte {
	return p.page(n)[HeaderSize:]
}

// writePage encodes header+body into page n's slice and recomputes the
// header's CRC32 over the full zero-padded BodySize body region (the same
// bytes validatePage checks), per spec.md "every page write recomputes CRC
// before flush".
func (p *pager) writePage(n uint32, h pageHeader, body []byte) {
	pg := p.page(n)
	copy(pg[HeaderSize:], body)
	for i := HeaderSize + len(body); i < PageSize; i++ {
		pg[i] = 0
	}
	h.CRC32 = bodyChecksum(pg[HeaderSize:])
	encodeHeader(h, pg[:HeaderSize])
}

// msync flushes the whole mapping to disk. The B+-tree calls this after
// every insert/delete per spec.md §4.5.
func (p *pager) msync() error {
	if err := unix.Msync(p.data, unix.MS_SYNC); err != nil {
		return rerrors.IO("msync index file", err)
	}
	return nil
}

func (p *pager) validatePage(n uint32) error {
	h := p.readHeader(n)
	if h.Magic != PageMagic {
		return rerrors.Corruption("index", "bad page magic")
	}
	body := p.readBody(n)[:BodySize]
	if bodyChecksum(body) != h.CRC32 {
		return rerrors.Corruption("index", "page CRC32 mismatch")
	}
	return nil
}

func (p *pager) close() error {
	if p.data != nil {
		if err := unix.Munmap(p.data); err != nil {
			return rerrors.IO("munmap index file", err)
		}
		p.data = nil
	}
	return p.file.Close()
}
