//go:build !unix

package cstable

import "os"

// OpenFilePath opens path with plain positional reads. The mmap-backed V1
// body region (spec.md §4.6 step 2) is only available on unix build
// targets; see mmap_unix.go.
func OpenFilePath(path string, options ...ReaderOption) (*TableReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(IOError, "OpenFilePath", err)
	}
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
