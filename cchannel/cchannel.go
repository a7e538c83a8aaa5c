// Package cchannel implements the Cryptomatte "compressed channel": a
// fixed-size 2D float32 buffer held in memory as a sequence of independently
// decompressible, fixed-size chunks. This caps the working set of a loaded
// Cryptomatte without requiring the whole w*h float array to be live at
// once.
package cchannel

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Codec identifies the compression algorithm backing a Channel's chunks.
type Codec int

const (
	CodecZlib Codec = iota
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecZlib:
		return "zlib"
	case CodecZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

const bytesPerFloat = 4

// Config selects the chunking and compression parameters for a Channel.
// DefaultConfig mirrors the teacher's ParallelConfig/DefaultParallelConfig
// pattern (exr/parallel.go): a plain value struct with a constructor for
// sane defaults, never a package-level global.
type Config struct {
	ChunkSize        int // bytes per chunk, power of two, typically 1 MiB
	BlockSize        int // bytes per sub-block inside a chunk, <= ChunkSize
	Codec            Codec
	CompressionLevel int // zlib level 1-9; -1 or 0 selects zlib's default; zstd ignores it
}

// DefaultConfig returns the library's default chunking/compression
// parameters: 1 MiB chunks, 64 KiB blocks, zlib at default level.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        1 << 20,
		BlockSize:        1 << 16,
		Codec:            CodecZlib,
		CompressionLevel: -1,
	}
}

// InvalidShapeError reports a pixel array whose length disagrees with the
// declared width*height.
type InvalidShapeError struct {
	Got, Want int
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("cchannel: invalid shape: got %d elements, want %d", e.Got, e.Want)
}

// chunk is one compressed unit of a Channel, independently decompressable.
type chunk struct {
	data []byte // compressed bytes
	n    int    // number of valid float32 elements this chunk decompresses to
}

// Channel is a block-compressed, chunked, fixed-size 2D float32 buffer with
// random chunk read/write. A Channel exclusively owns its compressed
// chunks; nothing is shared by reference across Channel boundaries.
type Channel struct {
	width, height int
	cfg           Config
	chunkElems    int // cfg.ChunkSize / 4, the logical capacity of one chunk
	chunks        []chunk
}

func chunkElemsFor(cfg Config) int {
	n := cfg.ChunkSize / bytesPerFloat
	if n < 1 {
		n = 1
	}
	return n
}

// FromPixels compresses pixels (row-major, top-left origin) into a new
// Channel. Fails with InvalidShapeError if len(pixels) != width*height.
func FromPixels(pixels []float32, width, height int, cfg Config) (*Channel, error) {
	want := width * height
	if len(pixels) != want {
		return nil, &InvalidShapeError{Got: len(pixels), Want: want}
	}

	chunkElems := chunkElemsFor(cfg)
	numChunks := numChunksFor(want, chunkElems)

	ch := &Channel{
		width: width, height: height,
		cfg:        cfg,
		chunkElems: chunkElems,
		chunks:     make([]chunk, numChunks),
	}
	for c := 0; c < numChunks; c++ {
		base := c * chunkElems
		n := min(chunkElems, want-base)
		data, err := compress(pixels[base:base+n], cfg)
		if err != nil {
			return nil, err
		}
		ch.chunks[c] = chunk{data: data, n: n}
	}
	return ch, nil
}

// Zeros builds a Channel of width*height zero elements, identically chunked
// to cfg. Implementations may use a sparse representation; this one simply
// compresses a zero-filled slice per chunk, since zlib/zstd compress runs of
// zero extremely cheaply and the simplicity keeps set_chunk uniform.
func Zeros(width, height int, cfg Config) (*Channel, error) {
	want := width * height
	chunkElems := chunkElemsFor(cfg)
	numChunks := numChunksFor(want, chunkElems)

	ch := &Channel{
		width: width, height: height,
		cfg:        cfg,
		chunkElems: chunkElems,
		chunks:     make([]chunk, numChunks),
	}
	zero := make([]float32, chunkElems)
	for c := 0; c < numChunks; c++ {
		base := c * chunkElems
		n := min(chunkElems, want-base)
		data, err := compress(zero[:n], cfg)
		if err != nil {
			return nil, err
		}
		ch.chunks[c] = chunk{data: data, n: n}
	}
	return ch, nil
}

func numChunksFor(totalElems, chunkElems int) int {
	if totalElems == 0 {
		return 0
	}
	return (totalElems + chunkElems - 1) / chunkElems
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GetChunk decompresses chunk chunkIdx into outBuf, which must have
// capacity >= ChunkElems(). Only the valid element range [0, n) is written;
// the remainder of outBuf is left untouched, per spec. Safe under
// concurrent readers of the same Channel.
func (c *Channel) GetChunk(outBuf []float32, chunkIdx int) error {
	ch := c.chunks[chunkIdx]
	return decompressInto(outBuf[:ch.n], ch.data, c.cfg)
}

// SetChunk recompresses inBuf[:n] (n is the chunk's existing valid element
// count) and atomically replaces chunk chunkIdx. Not concurrent-safe with
// itself or with GetChunk on the same chunk.
func (c *Channel) SetChunk(inBuf []float32, chunkIdx int) error {
	n := c.chunks[chunkIdx].n
	data, err := compress(inBuf[:n], c.cfg)
	if err != nil {
		return err
	}
	c.chunks[chunkIdx] = chunk{data: data, n: n}
	return nil
}

// GetDecompressed concatenates all chunks into one width*height float32
// slice.
func (c *Channel) GetDecompressed() ([]float32, error) {
	out := make([]float32, c.width*c.height)
	buf := make([]float32, c.chunkElems)
	for idx := range c.chunks {
		if err := c.GetChunk(buf, idx); err != nil {
			return nil, err
		}
		base := idx * c.chunkElems
		copy(out[base:base+c.chunks[idx].n], buf[:c.chunks[idx].n])
	}
	return out, nil
}

func (c *Channel) Width() int      { return c.width }
func (c *Channel) Height() int     { return c.height }
func (c *Channel) ChunkSize() int  { return c.cfg.ChunkSize }
func (c *Channel) ChunkElems() int { return c.chunkElems }
func (c *Channel) BlockSize() int  { return c.cfg.BlockSize }
func (c *Channel) NumChunks() int  { return len(c.chunks) }

// ChunkLen returns the number of valid float32 elements chunk chunkIdx
// decompresses to — equal to ChunkElems() for every chunk but the last,
// which may be partial.
func (c *Channel) ChunkLen(chunkIdx int) int { return c.chunks[chunkIdx].n }
func (c *Channel) Codec() Codec    { return c.cfg.Codec }
func (c *Channel) Level() int      { return c.cfg.CompressionLevel }

// UncompressedSize returns the total byte count of the decompressed
// float32 buffer this Channel represents.
func (c *Channel) UncompressedSize() int64 {
	return int64(c.width) * int64(c.height) * bytesPerFloat
}

// String renders a short human-readable summary, used for debug logging.
func (c *Channel) String() string {
	var compressed int64
	for _, ch := range c.chunks {
		compressed += int64(len(ch.data))
	}
	return fmt.Sprintf("cchannel %dx%d codec=%s %s -> %s (%d chunks)",
		c.width, c.height, c.cfg.Codec,
		humanize.IBytes(uint64(c.UncompressedSize())),
		humanize.IBytes(uint64(compressed)),
		len(c.chunks))
}

// zlibWriterPoolItem mirrors the teacher's compression/zip.go pooling
// strategy: pair a writer with its destination buffer so both are reused
// together.
type zlibWriterPoolItem struct {
	writer *zlib.Writer
	buf    *bytes.Buffer
}

var zlibWriterPool = sync.Pool{
	New: func() any {
		buf := new(bytes.Buffer)
		w, _ := zlib.NewWriterLevel(buf, zlib.DefaultCompression)
		return &zlibWriterPoolItem{writer: w, buf: buf}
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil)
		return enc
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	},
}

func floatsToBytes(f []float32) []byte {
	buf := make([]byte, len(f)*bytesPerFloat)
	for i, v := range f {
		bits := math.Float32bits(v)
		buf[i*4+0] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func bytesToFloats(b []byte, out []float32) {
	for i := range out {
		bits := uint32(b[i*4+0]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
}

func compress(pixels []float32, cfg Config) ([]byte, error) {
	raw := floatsToBytes(pixels)

	switch cfg.Codec {
	case CodecZstd:
		enc := zstdEncoderPool.Get().(*zstd.Encoder)
		defer zstdEncoderPool.Put(enc)
		var buf bytes.Buffer
		enc.Reset(&buf)
		if _, err := enc.Write(raw); err != nil {
			return nil, fmt.Errorf("cchannel: zstd compress: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("cchannel: zstd compress: %w", err)
		}
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		return out, nil

	default: // CodecZlib
		level := cfg.CompressionLevel
		if level == 0 {
			level = zlib.DefaultCompression
		}

		if level == -1 {
			item := zlibWriterPool.Get().(*zlibWriterPoolItem)
			defer zlibWriterPool.Put(item)
			item.buf.Reset()
			item.writer.Reset(item.buf)
			if _, err := item.writer.Write(raw); err != nil {
				return nil, fmt.Errorf("cchannel: zlib compress: %w", err)
			}
			if err := item.writer.Close(); err != nil {
				return nil, fmt.Errorf("cchannel: zlib compress: %w", err)
			}
			out := make([]byte, item.buf.Len())
			copy(out, item.buf.Bytes())
			return out, nil
		}

		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, fmt.Errorf("cchannel: zlib compress: %w", err)
		}
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("cchannel: zlib compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("cchannel: zlib compress: %w", err)
		}
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		return out, nil
	}
}

func decompressInto(out []float32, data []byte, cfg Config) error {
	want := len(out) * bytesPerFloat
	raw := make([]byte, want)

	switch cfg.Codec {
	case CodecZstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(dec)
		if err := dec.Reset(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("cchannel: zstd decompress: %w", err)
		}
		if _, err := io.ReadFull(dec, raw); err != nil && err != io.EOF {
			return fmt.Errorf("cchannel: zstd decompress: %w", err)
		}

	default: // CodecZlib
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("cchannel: zlib decompress: %w", err)
		}
		defer r.Close()
		if _, err := io.ReadFull(r, raw); err != nil && err != io.EOF {
			return fmt.Errorf("cchannel: zlib decompress: %w", err)
		}
	}

	bytesToFloats(raw, out)
	return nil
}
