// Package pagemgr implements the page manager described in spec.md §4.2:
// it allocates, writes, and reads fixed-ish-size byte ranges ("pages")
// inside a file, keeps a per-(column,stream) ordered list of page
// references, and recycles released ranges through a free list.
//
// The allocation algorithm (best-fit by size, tie-break by lowest offset)
// is grounded on the pager types found across the retrieval pack's
// embedded-database examples (e.g. chirst/cdb's pager and the free-page
// counter idiom), generalized from their fixed-page-size model to cstable's
// variable-size pages.
package pagemgr

import (
	"fmt"
	"io"
	"sort"

	"github.com/cstablefmt/cstable-go/format"
)

// Ref locates one page's bytes within the file.
type Ref struct {
	Offset uint64
	Size   uint32
}

// ReadWriterAt is the positional I/O surface the manager needs from the
// backing file. *os.File satisfies it; MemFile below provides an in-memory
// implementation for tests and for the in-memory arena open path.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

type freeRange struct {
	offset uint64
	size   uint32
}

// Manager owns the region of a file dedicated to pages. A single Manager
// instance is either write-capable (constructed with New, used by exactly
// one table writer) or read-only (constructed with NewReadOnly, built once
// from a parsed page index and safe to share across private column
// readers, which is the only concurrent access spec.md §5 allows).
type Manager struct {
	rw       ReadWriterAt
	cursor   uint64
	pages    map[format.PageIndexKey][]entry
	free     []freeRange
	readOnly bool
}

type entry struct {
	ref    Ref
	values uint32
}

// New returns a write-capable Manager whose allocation cursor starts at
// base (the end of the header section already written to rw).
func New(rw ReadWriterAt, base uint64) *Manager {
	return &Manager{
		rw:     rw,
		cursor: base,
		pages:  make(map[format.PageIndexKey][]entry),
	}
}

// NewReadOnly returns a read-only Manager built from a page index parsed
// at open time. Its per-key page lists are immutable from then on.
func NewReadOnly(rw io.ReaderAt, entries []format.PageIndexEntry) *Manager {
	m := &Manager{pages: make(map[format.PageIndexKey][]entry), readOnly: true}
	// io.ReaderAt is all a read-only manager needs; wrap it so the
	// shared rw field type doesn't need to change.
	m.rw = readOnlyAt{rw}
	for _, e := range entries {
		m.pages[e.Key] = append(m.pages[e.Key], entry{ref: Ref{Offset: e.Offset, Size: e.Size}, values: e.Values})
	}
	for k := range m.pages {
		list := m.pages[k]
		sort.Slice(list, func(i, j int) bool { return list[i].ref.Offset < list[j].ref.Offset })
		m.pages[k] = list
	}
	return m
}

type readOnlyAt struct{ io.ReaderAt }

func (readOnlyAt) WriteAt([]byte, int64) (int, error) {
	return 0, fmt.Errorf("pagemgr: write on read-only manager")
}

// Allocate reserves at least minBytes for key, reusing a free range by
// best fit (smallest range that still fits, tie-break lowest offset)
// before extending the file. The new ref is appended to the key's
// ordered page list.
func (m *Manager) Allocate(key format.PageIndexKey, minBytes int) (Ref, error) {
	if m.readOnly {
		return Ref{}, fmt.Errorf("pagemgr: allocate on read-only manager")
	}
	size := uint32(minBytes)
	ref := m.takeFree(size)
	if ref == nil {
		ref = &Ref{Offset: m.cursor, Size: size}
		m.cursor += uint64(size)
	}
	m.pages[key] = append(m.pages[key], entry{ref: *ref})
	return *ref, nil
}

func (m *Manager) takeFree(size uint32) *Ref {
	best := -1
	for i, f := range m.free {
		if f.size < size {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		b := m.free[best]
		if f.size < b.size || (f.size == b.size && f.offset < b.offset) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	f := m.free[best]
	m.free = append(m.free[:best], m.free[best+1:]...)
	return &Ref{Offset: f.offset, Size: size}
}

// Write performs a positional write of data at ref's offset. The manager
// guarantees a page's bytes are written exactly once before commit; it
// does not itself enforce that (the caller, a column page writer, only
// ever calls Write once per allocated ref).
func (m *Manager) Write(ref Ref, data []byte) error {
	if m.readOnly {
		return fmt.Errorf("pagemgr: write on read-only manager")
	}
	if uint32(len(data)) > ref.Size {
		return fmt.Errorf("pagemgr: write of %d bytes exceeds page size %d", len(data), ref.Size)
	}
	_, err := m.rw.WriteAt(data, int64(ref.Offset))
	return err
}

// Read performs a positional read of ref's bytes into out, which must be
// at least ref.Size bytes long.
func (m *Manager) Read(ref Ref, out []byte) error {
	_, err := m.rw.ReadAt(out[:ref.Size], int64(ref.Offset))
	return err
}

// Pages returns the ordered list of page refs allocated for key.
func (m *Manager) Pages(key format.PageIndexKey) []Ref {
	list := m.pages[key]
	refs := make([]Ref, len(list))
	for i, e := range list {
		refs[i] = e.ref
	}
	return refs
}

// SetValues records the logical value count of the most recently allocated
// page for key, so Snapshot can emit a complete PageIndexEntry.
func (m *Manager) SetValues(key format.PageIndexKey, values uint32) {
	list := m.pages[key]
	if len(list) == 0 {
		return
	}
	list[len(list)-1].values = values
}

// Tail returns the current allocation cursor: the offset the next
// Allocate call will extend the file to, absent a free-list hit. It is
// also the offset at which the next Append call writes.
func (m *Manager) Tail() uint64 { return m.cursor }

// Append writes data at the current tail and advances the cursor past it,
// returning the offset it was written at. Unlike Allocate, the bytes are
// not tracked in any key's page list: the table writer uses this for the
// page index itself, which the page manager does not index.
func (m *Manager) Append(data []byte) (uint64, error) {
	if m.readOnly {
		return 0, fmt.Errorf("pagemgr: append on read-only manager")
	}
	off := m.cursor
	if _, err := m.rw.WriteAt(data, int64(off)); err != nil {
		return 0, err
	}
	m.cursor += uint64(len(data))
	return off, nil
}

// Release returns ref's range to the free list. Only a writer's page
// manager supports this; readers never release pages.
func (m *Manager) Release(ref Ref) error {
	if m.readOnly {
		return fmt.Errorf("pagemgr: release on read-only manager")
	}
	m.free = append(m.free, freeRange{offset: ref.Offset, size: ref.Size})
	return nil
}

// Snapshot returns the full set of PageIndexEntry records describing every
// page currently allocated, grouped and ordered by key as spec.md §3
// requires.
func (m *Manager) Snapshot() []format.PageIndexEntry {
	keys := make([]format.PageIndexKey, 0, len(m.pages))
	for k := range m.pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ColumnID != keys[j].ColumnID {
			return keys[i].ColumnID < keys[j].ColumnID
		}
		return keys[i].EntryType < keys[j].EntryType
	})
	var out []format.PageIndexEntry
	for _, k := range keys {
		for _, e := range m.pages[k] {
			out = append(out, format.PageIndexEntry{Key: k, Offset: e.ref.Offset, Size: e.ref.Size, Values: e.values})
		}
	}
	return out
}

// ReadAll concatenates the bytes of every page belonging to key, in
// order, into a single buffer. Column readers use this to build an
// in-memory view of a logical stream once at construction; crossing a
// page boundary inside that buffer is then just a cursor advance.
func (m *Manager) ReadAll(key format.PageIndexKey) ([]byte, int, error) {
	list := m.pages[key]
	var out []byte
	values := 0
	for _, e := range list {
		buf := make([]byte, e.ref.Size)
		if err := m.Read(e.ref, buf); err != nil {
			return nil, 0, err
		}
		out = append(out, buf...)
		values += int(e.values)
	}
	return out, values, nil
}
