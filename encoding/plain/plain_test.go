package plain

import "testing"

func TestUint32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 4294967295, 1000}
	var buf []byte
	for _, v := range values {
		buf = AppendUint32(buf, v)
	}
	r := NewUint32Reader(buf, len(values))
	for i, want := range values {
		got, err := r.Read()
		if err != nil || got != want {
			t.Fatalf("value[%d] = %d, %v, want %d", i, got, err, want)
		}
	}
	if !r.EOF() {
		t.Fatal("expected EOF")
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	values := []float64{0, -1.5, 3.14159, 1e100}
	var buf []byte
	for _, v := range values {
		buf = AppendFloat64(buf, v)
	}
	r := NewFloat64Reader(buf, len(values))
	for i, want := range values {
		got, err := r.Read()
		if err != nil || got != want {
			t.Fatalf("value[%d] = %v, %v, want %v", i, got, err, want)
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	values := [][]byte{[]byte("a"), []byte("bb"), []byte(""), []byte("hello world")}
	var buf []byte
	for _, v := range values {
		buf = AppendBytes(buf, v)
	}
	r := NewBytesReader(buf, len(values))
	for i, want := range values {
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if string(got) != string(want) {
			t.Fatalf("value[%d] = %q, want %q", i, got, want)
		}
	}
	if !r.EOF() {
		t.Fatal("expected EOF")
	}
}

func TestBoolRoundTrip(t *testing.T) {
	values := []bool{true, false, false, true, true, true, false, true, true}
	w := &BoolWriter{}
	for _, v := range values {
		w.Write(v)
	}
	r := NewBoolReader(w.Bytes(), len(values))
	for i, want := range values {
		got, err := r.Read()
		if err != nil || got != want {
			t.Fatalf("value[%d] = %v, %v, want %v", i, got, err, want)
		}
	}
}

func TestTruncatedPagesAreDecodeErrors(t *testing.T) {
	if _, err := NewUint32Reader([]byte{1, 2, 3}, 1).Read(); err == nil {
		t.Fatal("expected error on truncated UINT32_PLAIN")
	}
	if _, err := NewBytesReader([]byte{5, 'a'}, 1).Read(); err == nil {
		t.Fatal("expected error on truncated STRING_PLAIN")
	}
}
