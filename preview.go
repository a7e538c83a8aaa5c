package cryptomatte

import "github.com/mrjoshuak/go-cryptomatte/cchannel"

// Preview decodes the legacy preview channels (the flattened RGB composite
// Cryptomatte authors historically wrote alongside the rank/coverage
// channels) — original C++ API's file::preview() (SPEC_FULL §4).
func (c *Cryptomatte) Preview() (map[string][]float32, error) {
	out := make(map[string][]float32, len(c.legacy))
	for name, ch := range c.legacy {
		data, err := ch.GetDecompressed()
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

// PreviewCompressed returns the legacy preview channels in their
// compressed form, without decoding — original's file::preview_compressed().
func (c *Cryptomatte) PreviewCompressed() map[string]*cchannel.Channel {
	out := make(map[string]*cchannel.Channel, len(c.legacy))
	for name, ch := range c.legacy {
		out[name] = ch
	}
	return out
}

// HasPreview reports whether this Cryptomatte has legacy preview channels
// loaded (original's util::has_preview(), size ∈ {0,3} per spec §3).
func (c *Cryptomatte) HasPreview() bool { return len(c.legacy) > 0 }
