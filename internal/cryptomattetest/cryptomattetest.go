// Package cryptomattetest builds in-memory Cryptomatte fixtures for the
// root cryptomatte package tests, without depending on a real EXR file on disk. It plays the role
// the teacher's exr/*_test.go files fill with exr.NewScanlineHeader and
// friends, but one layer up: a fake imgsource.ImageSource standing in for
// the external image-container collaborator spec §6 only specifies the
// interface of.
package cryptomattetest

import (
	"math"

	"github.com/mrjoshuak/go-cryptomatte/imgsource"
)

// Level is one (rank, coverage) pair for one pixel: the object hash at
// that rank slot and its fractional coverage.
type Level struct {
	Hash     uint32
	Coverage float32
}

// Builder assembles a synthetic Cryptomatte-bearing image: dimensions, a
// Cryptomatte typename/key, an optional manifest, and per-pixel levels.
type Builder struct {
	Width, Height int
	Typename      string
	Key           string
	ManifestJSON  string // optional; "" means no embedded manifest
	Pixels        [][]Level // len == Width*Height, row-major
	ExtraAttrs    map[string]string
	LegacyRGB     [][3]float32 // optional preview channel values, len == Width*Height
}

// NewBuilder returns a Builder with sane defaults for a small fixture
// image.
func NewBuilder(width, height int, typename, key string) *Builder {
	return &Builder{
		Width: width, Height: height,
		Typename: typename, Key: key,
		Pixels:     make([][]Level, width*height),
		ExtraAttrs: make(map[string]string),
	}
}

// Set assigns the levels for pixel (x, y).
func (b *Builder) Set(x, y int, levels ...Level) {
	b.Pixels[y*b.Width+x] = levels
}

// Build renders the fixture into a fake ImageSource keyed by path, ready
// to pass to the root package's Load.
func (b *Builder) Build(path string) *FakeSource {
	numLevels := 0
	for _, px := range b.Pixels {
		if len(px) > numLevels {
			numLevels = len(px)
		}
	}
	if numLevels == 0 {
		numLevels = 1
	}

	// Cryptomatte packs two (rank, coverage) levels into each channel
	// index's four components: r=rank(2i), g=cov(2i), b=rank(2i+1),
	// a=cov(2i+1). The final index may be partial, carrying only r/g, when
	// numLevels is odd.
	channels := make(map[string][]float32)
	var names []string
	numIndices := (numLevels + 1) / 2
	for ci := 0; ci < numIndices; ci++ {
		levelA, levelB := 2*ci, 2*ci+1

		rank0, cov0 := make([]float32, b.Width*b.Height), make([]float32, b.Width*b.Height)
		for i, px := range b.Pixels {
			if levelA < len(px) {
				rank0[i] = math.Float32frombits(px[levelA].Hash)
				cov0[i] = px[levelA].Coverage
			}
		}
		rName, gName := channelName(b.Typename, ci, "r"), channelName(b.Typename, ci, "g")
		channels[rName], channels[gName] = rank0, cov0
		names = append(names, rName, gName)

		if levelB < numLevels {
			rank1, cov1 := make([]float32, b.Width*b.Height), make([]float32, b.Width*b.Height)
			for i, px := range b.Pixels {
				if levelB < len(px) {
					rank1[i] = math.Float32frombits(px[levelB].Hash)
					cov1[i] = px[levelB].Coverage
				}
			}
			bName, aName := channelName(b.Typename, ci, "b"), channelName(b.Typename, ci, "a")
			channels[bName], channels[aName] = rank1, cov1
			names = append(names, bName, aName)
		}
	}

	if b.LegacyRGB != nil {
		r := make([]float32, b.Width*b.Height)
		g := make([]float32, b.Width*b.Height)
		bch := make([]float32, b.Width*b.Height)
		for i, v := range b.LegacyRGB {
			r[i], g[i], bch[i] = v[0], v[1], v[2]
		}
		channels[b.Typename+".r"] = r
		channels[b.Typename+".g"] = g
		channels[b.Typename+".b"] = bch
		names = append(names, b.Typename+".r", b.Typename+".g", b.Typename+".b")
	}

	attrs := map[string]string{
		"cryptomatte/" + b.Key + "/name":       b.Typename,
		"cryptomatte/" + b.Key + "/hash":       "MurmurHash3_32",
		"cryptomatte/" + b.Key + "/conversion": "uint32_to_float32",
	}
	if b.ManifestJSON != "" {
		attrs["cryptomatte/"+b.Key+"/manifest"] = b.ManifestJSON
	}
	for k, v := range b.ExtraAttrs {
		attrs[k] = v
	}

	return &FakeSource{
		Path: path,
		SpecV: imgsource.Spec{
			Width: b.Width, Height: b.Height,
			ChannelNames: names,
			Attributes:   attrs,
		},
		Channels: channels,
	}
}

func channelName(typename string, index int, chanLetter string) string {
	digits := [2]byte{byte('0' + (index/10)%10), byte('0' + index%10)}
	return typename + string(digits[:]) + "." + chanLetter
}

// FakeSource is a minimal in-memory imgsource.ImageSource.
type FakeSource struct {
	Path     string
	SpecV    imgsource.Spec
	Channels map[string][]float32
}

func (s *FakeSource) Open(path string) (imgsource.Reader, error) {
	if s.Path != "" && path != s.Path {
		return nil, &imgsource.IOError{Path: path, Err: errNotFound{path}}
	}
	return &fakeReader{spec: s.SpecV, channels: s.Channels}, nil
}

type errNotFound struct{ path string }

func (e errNotFound) Error() string { return "cryptomattetest: no fixture registered for " + e.path }

type fakeReader struct {
	spec     imgsource.Spec
	channels map[string][]float32
}

func (r *fakeReader) Spec() (imgsource.Spec, error) { return r.spec, nil }

func (r *fakeReader) ReadChannels(names []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(names))
	for _, n := range names {
		data, ok := r.channels[n]
		if !ok {
			return nil, &imgsource.MissingChannelError{Channel: n}
		}
		out[n] = data
	}
	return out, nil
}

func (r *fakeReader) Close() error { return nil }
