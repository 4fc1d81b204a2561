//go:build unix

package cstable

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapRegion memory-maps an entire file read-only, exposing it as an
// io.ReaderAt. It backs the V1 read path's "memory-map the file" step
// (spec.md §4.6 step 2), and serves V2 files the same way when mmap is
// enabled.
type mmapRegion struct {
	data []byte
	f    *os.File
}

func newMmapRegion(f *os.File) (*mmapRegion, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return &mmapRegion{f: f}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("cstable: mmap: %w", err)
	}
	return &mmapRegion{data: data, f: f}, nil
}

func (m *mmapRegion) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off) > len(m.data) {
		return 0, fmt.Errorf("cstable: mmap read out of range")
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("cstable: mmap read past end of file")
	}
	return n, nil
}

func (m *mmapRegion) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return err
		}
	}
	return m.f.Close()
}

func (m *mmapRegion) Len() int64 { return int64(len(m.data)) }

// OpenFilePath opens path and, when cfg.UseMmap is set (the default),
// serves the whole file through a read-only mmap instead of positional
// file reads, whatever its format version. With UseMmap off the file is
// read with plain positional reads.
func OpenFilePath(path string, options ...ReaderOption) (*TableReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(IOError, "OpenFilePath", err)
	}
	cfg := DefaultReaderConfig()
	cfg.Apply(options...)

	if !cfg.UseMmap {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, wrapErr(IOError, "OpenFilePath", err)
		}
		r, err := OpenFile(f, info.Size(), options...)
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	}

	region, err := newMmapRegion(f)
	if err != nil {
		f.Close()
		return nil, wrapErr(IOError, "OpenFilePath", err)
	}
	r, err := OpenFile(region, region.Len(), options...)
	if err != nil {
		region.Close()
		return nil, err
	}
	return r, nil
}
