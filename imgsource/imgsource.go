// Package imgsource defines the boundary between the Cryptomatte reader and
// the multi-channel floating-point image container it reads from (spec §6):
// a collaborator that opens an image file and yields per-channel pixel
// arrays plus a flat string-keyed attribute map. Only the interface is
// specified; the concrete implementation here adapts it to the retained
// `exr` package (the teacher's own OpenEXR reader).
package imgsource

import (
	"fmt"
)

// PixelType identifies the declared storage type of a channel, as reported
// by the underlying container. The loader itself does not inspect it;
// whether a non-Float32 channel is rejected depends on the Reader (see
// ReadChannels).
type PixelType int

const (
	PixelTypeUnknown PixelType = iota
	PixelTypeHalf
	PixelTypeFloat32
	PixelTypeUint32
)

func (t PixelType) String() string {
	switch t {
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat32:
		return "float32"
	case PixelTypeUint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// Spec summarizes an opened image: its dimensions, the ordered list of
// channel names the container holds, each channel's declared pixel type,
// and its flat string-keyed attribute map.
type Spec struct {
	Width, Height int
	ChannelNames  []string
	PixelTypes    map[string]PixelType
	Attributes    map[string]string
}

// IOError wraps a failure to open or read an image file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("imgsource: %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// UnsupportedPixelTypeError reports a requested channel whose declared
// pixel type is not Float32.
type UnsupportedPixelTypeError struct {
	Channel string
	Type    PixelType
}

func (e *UnsupportedPixelTypeError) Error() string {
	return fmt.Sprintf("imgsource: channel %q has unsupported pixel type %s, want float32", e.Channel, e.Type)
}

// MissingChannelError reports a requested channel absent from the
// container.
type MissingChannelError struct {
	Channel string
}

func (e *MissingChannelError) Error() string {
	return fmt.Sprintf("imgsource: channel %q not found", e.Channel)
}

// Reader is an opened image ready to yield channel pixel data. It is
// scoped to one Load call: the caller closes it (directly or via
// ImageSource.Open's returned closer) once loading completes, per spec §5
// ("File handles... are scoped to the load call").
type Reader interface {
	// Spec describes the opened image.
	Spec() (Spec, error)

	// ReadChannels reads exactly the named channels in one call and
	// returns each as a row-major, top-left-origin float32 slice of
	// length width*height. Fails with MissingChannelError if a named
	// channel is absent. The EXR-backed Reader converts half and uint32
	// channels to float32 rather than rejecting them, and fails with
	// UnsupportedPixelTypeError only for any other pixel type.
	ReadChannels(names []string) (map[string][]float32, error)

	// Close releases any resources (file handles) held by the Reader.
	Close() error
}

// ImageSource is the external collaborator the image loader façade (C6)
// depends on: something that can open a path and hand back a Reader. Only
// this interface is specified by spec §6 — the concrete implementation is
// deliberately out of the core's scope, but this package also ships one
// (backed by the retained `exr` package) so the library is usable
// standalone.
type ImageSource interface {
	Open(path string) (Reader, error)
}
