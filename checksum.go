package cstable

import (
	"crypto/sha1"
	"encoding/binary"
)

// metablockChecksum computes the sha1 digest that protects one metablock
// slot (spec.md §6): it covers the metablock's own fields (other than the
// checksum itself) plus the page-index bytes it points to, so that a
// corrupt or partially-written index is detected the same way a corrupt
// metablock would be.
func metablockChecksum(transactionID, numRows, indexOffset, indexSize uint64, indexBytes []byte) [20]byte {
	h := sha1.New()
	var b [32]byte
	binary.LittleEndian.PutUint64(b[0:8], transactionID)
	binary.LittleEndian.PutUint64(b[8:16], numRows)
	binary.LittleEndian.PutUint64(b[16:24], indexOffset)
	binary.LittleEndian.PutUint64(b[24:32], indexSize)
	h.Write(b[:])
	h.Write(indexBytes)
	var sum [20]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
