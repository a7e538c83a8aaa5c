// Package cryptomatte holds a loaded Cryptomatte's rank/coverage channels
// and metadata, and decodes per-object coverage masks from them (spec §3,
// §4.6 — components C7/C8).
package cryptomatte

import (
	"sort"

	"github.com/mrjoshuak/go-cryptomatte/cchannel"
	"github.com/mrjoshuak/go-cryptomatte/chanref"
	"github.com/mrjoshuak/go-cryptomatte/cryptometa"
	"go.uber.org/zap"
)

// namedChannel pairs a channel's canonical name with its compressed data.
type namedChannel struct {
	name string
	ch   *cchannel.Channel
}

// Cryptomatte holds the ordered rank/coverage channels for one Cryptomatte,
// its legacy preview channels, and its metadata. A Cryptomatte exclusively
// owns its Channels; nothing is shared by reference across Cryptomatte
// boundaries (spec §3, §5).
type Cryptomatte struct {
	channels []namedChannel          // ordered: (rank_0, cov_0, rank_1, cov_1, ...)
	legacy   map[string]*cchannel.Channel
	metadata cryptometa.Metadata

	width, height int
	workers       int
	metrics       *metrics
	logger        *zap.Logger
}

// New validates and constructs a Cryptomatte from an unordered set of
// named rank/coverage channels, the legacy preview channels (if any), and
// the owning Metadata. This is the construction-time invariant check of
// spec §3: contiguity, quad-completeness, and shape/codec agreement.
func New(channels map[string]*cchannel.Channel, legacy map[string]*cchannel.Channel, meta cryptometa.Metadata) (*Cryptomatte, error) {
	if len(channels) == 0 {
		return nil, newErr(KindMalformedCryptomatte, "no rank/coverage channels", nil)
	}

	type refChan struct {
		ref chanref.Ref
		nc  namedChannel
	}
	var refs []refChan
	for name, ch := range channels {
		r, err := chanref.Parse(name)
		if err != nil {
			return nil, newErr(KindMalformedChannelName, "channel "+name, err)
		}
		if !r.HasIndex {
			return nil, newErr(KindMalformedCryptomatte, "rank/coverage channel "+name+" has no index", nil)
		}
		refs = append(refs, refChan{ref: r, nc: namedChannel{name: name, ch: ch}})
	}
	sort.Slice(refs, func(i, j int) bool { return chanref.Less(refs[i].ref, refs[j].ref) })

	plain := make([]chanref.Ref, len(refs))
	for i, rc := range refs {
		plain[i] = rc.ref
	}
	if err := validateQuadStructure(plain); err != nil {
		return nil, err
	}

	var first *cchannel.Channel
	ordered := make([]namedChannel, len(refs))
	for i, rc := range refs {
		ordered[i] = rc.nc
		if first == nil {
			first = rc.nc.ch
		} else if err := agreesOnShape(first, rc.nc.ch); err != nil {
			return nil, err
		}
	}

	c := &Cryptomatte{
		channels: ordered,
		legacy:   legacy,
		metadata: meta,
		width:    first.Width(),
		height:   first.Height(),
	}
	return c, nil
}

// validateQuadStructure enforces the §3 invariant: once sorted, channel
// indices form {0,...,K-1} contiguously, and within each index the
// channel set is exactly {r,g,b,a} or, for the last index only, {r,g}.
// Shared by Cryptomatte construction (New) and the standalone
// ValidateChannelStructure predicate.
func validateQuadStructure(refs []chanref.Ref) error {
	groups := make(map[int][]chanref.Chan)
	var indices []int
	seen := make(map[int]bool)
	for _, r := range refs {
		if !seen[r.Index] {
			seen[r.Index] = true
			indices = append(indices, r.Index)
		}
		groups[r.Index] = append(groups[r.Index], r.Chan)
	}
	sort.Ints(indices)

	for i, idx := range indices {
		if idx != i {
			return newErr(KindMalformedCryptomatte, "channel indices are not contiguous from 0", nil)
		}
		chans := groups[idx]
		if !isFullQuad(chans) && !(i == len(indices)-1 && isPartialQuad(chans)) {
			return newErr(KindMalformedCryptomatte, "channel index has an incomplete rank/coverage quad", nil)
		}
	}
	return nil
}

func isFullQuad(chans []chanref.Chan) bool {
	if len(chans) != 4 {
		return false
	}
	return hasAll(chans, chanref.Red, chanref.Green, chanref.Blue, chanref.Alpha)
}

func isPartialQuad(chans []chanref.Chan) bool {
	if len(chans) != 2 {
		return false
	}
	return hasAll(chans, chanref.Red, chanref.Green)
}

func hasAll(chans []chanref.Chan, want ...chanref.Chan) bool {
	present := make(map[chanref.Chan]bool, len(chans))
	for _, c := range chans {
		present[c] = true
	}
	for _, w := range want {
		if !present[w] {
			return false
		}
	}
	return len(chans) == len(want)
}

func agreesOnShape(a, b *cchannel.Channel) error {
	if a.Width() != b.Width() || a.Height() != b.Height() ||
		a.ChunkSize() != b.ChunkSize() || a.BlockSize() != b.BlockSize() ||
		a.NumChunks() != b.NumChunks() || a.Codec() != b.Codec() {
		return newErr(KindMalformedCryptomatte, "channels disagree on shape or compression", nil)
	}
	return nil
}

// Width and Height report the image dimensions shared by every channel.
func (c *Cryptomatte) Width() int  { return c.width }
func (c *Cryptomatte) Height() int { return c.height }

// Metadata returns the Cryptomatte's parsed metadata descriptor.
func (c *Cryptomatte) Metadata() cryptometa.Metadata { return c.metadata }

// NumLevels returns K, the number of (rank, coverage) pairs — the original
// C++ API's num_levels() (spec SPEC_FULL §4 supplemented features).
func (c *Cryptomatte) NumLevels() int { return len(c.channels) / 2 }

func (c *Cryptomatte) rankCov(k int) (*cchannel.Channel, *cchannel.Channel) {
	return c.channels[2*k].ch, c.channels[2*k+1].ch
}

func (c *Cryptomatte) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}
