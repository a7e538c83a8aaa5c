package cchannel

import (
	"math"
	"testing"
)

func testPixels(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) * 0.5
	}
	return out
}

func TestFromPixelsRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecZlib, CodecZstd} {
		cfg := DefaultConfig()
		cfg.Codec = codec
		cfg.ChunkSize = 64 // force multiple small chunks

		pixels := testPixels(37)
		ch, err := FromPixels(pixels, 37, 1, cfg)
		if err != nil {
			t.Fatalf("[%s] FromPixels: %v", codec, err)
		}
		got, err := ch.GetDecompressed()
		if err != nil {
			t.Fatalf("[%s] GetDecompressed: %v", codec, err)
		}
		if len(got) != len(pixels) {
			t.Fatalf("[%s] len = %d, want %d", codec, len(got), len(pixels))
		}
		for i := range pixels {
			if got[i] != pixels[i] {
				t.Fatalf("[%s] element %d = %v, want %v", codec, i, got[i], pixels[i])
			}
		}
	}
}

func TestFromPixelsInvalidShape(t *testing.T) {
	_, err := FromPixels(make([]float32, 5), 2, 2, DefaultConfig())
	if err == nil {
		t.Fatalf("expected InvalidShapeError")
	}
	if _, ok := err.(*InvalidShapeError); !ok {
		t.Fatalf("got %T, want *InvalidShapeError", err)
	}
}

func TestZerosDecompressesToZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 32
	ch, err := Zeros(5, 5, cfg)
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	got, err := ch.GetDecompressed()
	if err != nil {
		t.Fatalf("GetDecompressed: %v", err)
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("element %d = %v, want 0", i, v)
		}
	}
}

func TestChunkIdempotence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 48 // 12 float32s per chunk
	pixels := testPixels(50)
	ch, err := FromPixels(pixels, 50, 1, cfg)
	if err != nil {
		t.Fatalf("FromPixels: %v", err)
	}

	before, err := ch.GetDecompressed()
	if err != nil {
		t.Fatalf("GetDecompressed: %v", err)
	}

	buf := make([]float32, ch.ChunkElems())
	for c := 0; c < ch.NumChunks(); c++ {
		if err := ch.GetChunk(buf, c); err != nil {
			t.Fatalf("GetChunk(%d): %v", c, err)
		}
		if err := ch.SetChunk(buf, c); err != nil {
			t.Fatalf("SetChunk(%d): %v", c, err)
		}
	}

	after, err := ch.GetDecompressed()
	if err != nil {
		t.Fatalf("GetDecompressed: %v", err)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("element %d changed: %v != %v", i, before[i], after[i])
		}
	}
}

func TestGetChunkDoesNotTouchBeyondValidRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 40 // 10 float32s per chunk
	pixels := testPixels(15)
	ch, err := FromPixels(pixels, 15, 1, cfg)
	if err != nil {
		t.Fatalf("FromPixels: %v", err)
	}

	sentinel := float32(math.Inf(1))
	buf := make([]float32, ch.ChunkElems())
	for i := range buf {
		buf[i] = sentinel
	}
	if err := ch.GetChunk(buf, 1); err != nil { // second chunk holds 5 valid elements
		t.Fatalf("GetChunk: %v", err)
	}
	for i := 5; i < len(buf); i++ {
		if buf[i] != sentinel {
			t.Fatalf("buf[%d] was overwritten, want untouched sentinel", i)
		}
	}
}

func TestAccessors(t *testing.T) {
	cfg := Config{ChunkSize: 1 << 20, BlockSize: 1 << 16, Codec: CodecZstd, CompressionLevel: 3}
	ch, err := FromPixels(testPixels(100), 10, 10, cfg)
	if err != nil {
		t.Fatalf("FromPixels: %v", err)
	}
	if ch.Width() != 10 || ch.Height() != 10 {
		t.Fatalf("unexpected dims %d x %d", ch.Width(), ch.Height())
	}
	if ch.Codec() != CodecZstd {
		t.Fatalf("Codec() = %v, want CodecZstd", ch.Codec())
	}
	if ch.UncompressedSize() != 400 {
		t.Fatalf("UncompressedSize() = %d, want 400", ch.UncompressedSize())
	}
	if ch.NumChunks() != 1 {
		t.Fatalf("NumChunks() = %d, want 1", ch.NumChunks())
	}
}
