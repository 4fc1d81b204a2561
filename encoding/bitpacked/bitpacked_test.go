package bitpacked

import (
	"math/rand"
	"testing"

	"github.com/cstablefmt/cstable-go/internal/quick"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		max  uint32
		want uint
	}{
		{0, 0},
		{1, 1},
		{9, 4}, // S1 scenario: max value 9 needs 4 bits
		{15, 4},
		{16, 5},
		{255, 8},
	}
	for _, tt := range tests {
		if got := Width(tt.max); got != tt.want {
			t.Errorf("Width(%d) = %d, want %d", tt.max, got, tt.want)
		}
	}
}

func TestGroupByteLengthFullGroup(t *testing.T) {
	// spec.md §8 property 5: ceil(128*maxbits/8) bytes per full group.
	if got, want := GroupByteLength(4), 128*4/8; got != want {
		t.Errorf("GroupByteLength(4) = %d, want %d", got, want)
	}
	if got, want := GroupByteLength(3), (128*3+7)/8; got != want {
		t.Errorf("GroupByteLength(3) = %d, want %d", got, want)
	}
}

func TestRoundTripScenarioS1(t *testing.T) {
	values := []uint32{3, 1, 4, 1, 5, 9, 2, 6}
	width := Width(9)
	if width != 4 {
		t.Fatalf("width = %d, want 4", width)
	}

	w := NewWriter(width)
	for _, v := range values {
		w.Write(v)
	}
	data := w.Flush()
	if len(data) != GroupByteLength(width) {
		t.Fatalf("encoded length = %d, want %d", len(data), GroupByteLength(width))
	}

	r := NewReader(data, width, len(values))
	for i, want := range values {
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("value[%d] = %d, want %d", i, got, want)
		}
	}
	if !r.EOF() {
		t.Fatal("expected EOF")
	}
}

func TestRoundTripFullGroupBoundary(t *testing.T) {
	width := uint(7)
	values := make([]uint32, GroupSize*2+5)
	r := rand.New(rand.NewSource(1))
	for i := range values {
		values[i] = uint32(r.Intn(1 << width))
	}

	w := NewWriter(width)
	for _, v := range values {
		w.Write(v)
	}
	data := w.Flush()

	reader := NewReader(data, width, len(values))
	for i, want := range values {
		got, err := reader.Read()
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("value[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestRewindIsIdempotent(t *testing.T) {
	width := uint(5)
	w := NewWriter(width)
	for i := uint32(0); i < 20; i++ {
		w.Write(i % 32)
	}
	data := w.Flush()

	r := NewReader(data, width, 20)
	var first []uint32
	for !r.EOF() {
		v, err := r.Read()
		if err != nil {
			t.Fatal(err)
		}
		first = append(first, v)
	}
	r.Rewind()
	var second []uint32
	for !r.EOF() {
		v, err := r.Read()
		if err != nil {
			t.Fatal(err)
		}
		second = append(second, v)
	}
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d != %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("value[%d] differs after rewind: %d != %d", i, first[i], second[i])
		}
	}
}

func TestTruncatedGroupIsDecodeError(t *testing.T) {
	width := uint(6)
	data := make([]byte, GroupByteLength(width)-1)
	r := NewReader(data, width, GroupSize)
	if _, err := r.Read(); err == nil {
		t.Fatal("expected error reading a truncated group")
	}
}

func TestWidthQuickProperty(t *testing.T) {
	err := quick.Check(func(data []uint32) bool {
		width := Width(maxOf(data))
		if width > 32 {
			return false
		}
		if len(data) == 0 {
			return width == 0
		}
		for _, v := range data {
			if width < 32 && v >= (uint32(1)<<width) {
				return false
			}
		}
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
}

func maxOf(data []uint32) uint32 {
	var m uint32
	for _, v := range data {
		if v > m {
			m = v
		}
	}
	return m
}
