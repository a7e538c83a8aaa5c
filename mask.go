package cryptomatte

import (
	"math"
	"time"

	"github.com/mrjoshuak/go-cryptomatte/cchannel"
	"github.com/mrjoshuak/go-cryptomatte/manifest"
)

// Mask decodes the flat per-pixel coverage mask for the object named name,
// resolving name to its hash via the Cryptomatte's manifest (spec §4.6.1).
// Fails with a KindUnknownName Error if name is not in the manifest, or
// KindNoManifest if there is no manifest at all — name lookups are
// strict, unlike hash lookups.
func (c *Cryptomatte) Mask(name string) ([]float32, error) {
	hash, err := c.resolveName(name)
	if err != nil {
		return nil, err
	}
	return c.MaskByHash(hash)
}

// MaskByHash decodes the flat per-pixel coverage mask for the object whose
// manifest hash is hash. Unlike Mask, this is permissive: a hash that
// appears in no pixel simply yields an all-zero mask, since hash-based
// queries don't depend on manifest presence (spec §4.6.1, §4.6.4).
func (c *Cryptomatte) MaskByHash(hash uint32) ([]float32, error) {
	out := make([]float32, c.width*c.height)
	if err := c.accumulateMask(hash, out); err != nil {
		return nil, err
	}
	c.metrics.incMasksDecoded()
	return out, nil
}

func (c *Cryptomatte) resolveName(name string) (uint32, error) {
	man := c.metadata.Manifest
	if man == nil {
		return 0, newErr(KindNoManifest, "cannot resolve name "+name, nil)
	}
	hash, err := man.HashU32(name)
	if err != nil {
		return 0, newErr(KindUnknownName, name, err)
	}
	return hash, nil
}

// accumulateMask adds the coverage contribution of hash across every rank
// level into out, which must be length width*height and zero-initialized.
// Internally data-parallel over chunks (spec §5: "data parallelism over
// pixels"), grounded on the teacher's exr.ParallelForWithError.
func (c *Cryptomatte) accumulateMask(hash uint32, out []float32) error {
	target := math.Float32frombits(hash)

	for k := 0; k < c.NumLevels(); k++ {
		rank, cov := c.rankCov(k)
		numChunks := rank.NumChunks()
		chunkElems := rank.ChunkElems()

		err := c.parallelForWithError(numChunks, func(chunkIdx int) error {
			rankBuf := make([]float32, chunkElems)
			covBuf := make([]float32, chunkElems)

			start := time.Now()
			if err := rank.GetChunk(rankBuf, chunkIdx); err != nil {
				return err
			}
			if err := cov.GetChunk(covBuf, chunkIdx); err != nil {
				return err
			}
			c.metrics.observeChunkDecompress(time.Since(start).Seconds())

			base := chunkIdx * chunkElems
			n := rank.ChunkLen(chunkIdx)
			for i := 0; i < n; i++ {
				if rankBuf[i] == target {
					out[base+i] += covBuf[i]
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MaskCompressedByHash decodes hash's mask straight into compressed chunk
// form: a zero-initialized output Channel whose chunks are populated by
// decompressing and accumulating each level's rank/coverage chunk pair
// in turn, then recompressing — spec §4.6.2's compressed-output algorithm.
func (c *Cryptomatte) MaskCompressedByHash(hash uint32) (*cchannel.Channel, error) {
	cfg := c.chunkConfig()
	out, err := cchannel.Zeros(c.width, c.height, cfg)
	if err != nil {
		return nil, err
	}

	target := math.Float32frombits(hash)
	numChunks := out.NumChunks()
	chunkElems := out.ChunkElems()

	err = c.parallelForWithError(numChunks, func(chunkIdx int) error {
		accum := make([]float32, chunkElems)
		if err := out.GetChunk(accum, chunkIdx); err != nil {
			return err
		}

		rankBuf := make([]float32, chunkElems)
		covBuf := make([]float32, chunkElems)
		for k := 0; k < c.NumLevels(); k++ {
			rank, cov := c.rankCov(k)
			start := time.Now()
			if err := rank.GetChunk(rankBuf, chunkIdx); err != nil {
				return err
			}
			if err := cov.GetChunk(covBuf, chunkIdx); err != nil {
				return err
			}
			c.metrics.observeChunkDecompress(time.Since(start).Seconds())

			n := out.ChunkLen(chunkIdx)
			for i := 0; i < n; i++ {
				if rankBuf[i] == target {
					accum[i] += covBuf[i]
				}
			}
		}
		return out.SetChunk(accum, chunkIdx)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.incMasksDecoded()
	return out, nil
}

// MaskCompressed resolves name and delegates to MaskCompressedByHash
// (spec §4.6.2).
func (c *Cryptomatte) MaskCompressed(name string) (*cchannel.Channel, error) {
	hash, err := c.resolveName(name)
	if err != nil {
		return nil, err
	}
	return c.MaskCompressedByHash(hash)
}

func (c *Cryptomatte) chunkConfig() cchannel.Config {
	rank, _ := c.rankCov(0)
	return cchannel.Config{
		ChunkSize:        rank.ChunkSize(),
		BlockSize:        rank.BlockSize(),
		Codec:            rank.Codec(),
		CompressionLevel: rank.Level(),
	}
}

// Masks decodes flat masks for a batch of names in one pass, amortizing
// each chunk's decompression across every requested target (spec §4.6.3).
// Fails on the first unresolvable name with a KindUnknownName Error, or
// KindNoManifest if there is no manifest at all.
func (c *Cryptomatte) Masks(names []string) (map[string][]float32, error) {
	hashes := make(map[string]uint32, len(names))
	for _, name := range names {
		hash, err := c.resolveName(name)
		if err != nil {
			return nil, err
		}
		hashes[name] = hash
	}
	byHash, err := c.masksByHashes(valuesOf(hashes))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(names))
	for name, hash := range hashes {
		out[name] = byHash[hash]
	}
	return out, nil
}

// MasksByHash is the hash-keyed batch counterpart of Masks.
func (c *Cryptomatte) MasksByHash(hashes []uint32) (map[uint32][]float32, error) {
	return c.masksByHashes(hashes)
}

func (c *Cryptomatte) masksByHashes(hashes []uint32) (map[uint32][]float32, error) {
	targets := make([]float32, len(hashes))
	for i, h := range hashes {
		targets[i] = math.Float32frombits(h)
	}

	out := make(map[uint32][]float32, len(hashes))
	for _, h := range hashes {
		out[h] = make([]float32, c.width*c.height)
	}

	for k := 0; k < c.NumLevels(); k++ {
		rank, cov := c.rankCov(k)
		numChunks := rank.NumChunks()
		chunkElems := rank.ChunkElems()

		err := c.parallelForWithError(numChunks, func(chunkIdx int) error {
			rankBuf := make([]float32, chunkElems)
			covBuf := make([]float32, chunkElems)

			start := time.Now()
			if err := rank.GetChunk(rankBuf, chunkIdx); err != nil {
				return err
			}
			if err := cov.GetChunk(covBuf, chunkIdx); err != nil {
				return err
			}
			c.metrics.observeChunkDecompress(time.Since(start).Seconds())

			base := chunkIdx * chunkElems
			n := rank.ChunkLen(chunkIdx)
			for i := 0; i < n; i++ {
				v := rankBuf[i]
				for ti, t := range targets {
					if v == t {
						out[hashes[ti]][base+i] += covBuf[i]
					}
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	c.metrics.incMasksDecoded()
	return out, nil
}

// MasksCompressed is the compressed-output counterpart of Masks.
func (c *Cryptomatte) MasksCompressed(names []string) (map[string]*cchannel.Channel, error) {
	hashes := make(map[string]uint32, len(names))
	for _, name := range names {
		hash, err := c.resolveName(name)
		if err != nil {
			return nil, err
		}
		hashes[name] = hash
	}
	byHash, err := c.masksCompressedByHashes(valuesOf(hashes))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*cchannel.Channel, len(names))
	for name, hash := range hashes {
		out[name] = byHash[hash]
	}
	return out, nil
}

// MasksCompressedByHash is the hash-keyed batch counterpart of
// MasksCompressed.
func (c *Cryptomatte) MasksCompressedByHash(hashes []uint32) (map[uint32]*cchannel.Channel, error) {
	return c.masksCompressedByHashes(hashes)
}

func (c *Cryptomatte) masksCompressedByHashes(hashes []uint32) (map[uint32]*cchannel.Channel, error) {
	cfg := c.chunkConfig()
	targets := make([]float32, len(hashes))
	for i, h := range hashes {
		targets[i] = math.Float32frombits(h)
	}

	results := make(map[uint32]*cchannel.Channel, len(hashes))
	for _, h := range hashes {
		ch, err := cchannel.Zeros(c.width, c.height, cfg)
		if err != nil {
			return nil, err
		}
		results[h] = ch
	}

	numChunks := 0
	if len(hashes) > 0 {
		numChunks = results[hashes[0]].NumChunks()
	}
	chunkElems := 0
	if len(hashes) > 0 {
		chunkElems = results[hashes[0]].ChunkElems()
	}

	err := c.parallelForWithError(numChunks, func(chunkIdx int) error {
		accums := make([][]float32, len(hashes))
		for i, h := range hashes {
			accums[i] = make([]float32, chunkElems)
			if err := results[h].GetChunk(accums[i], chunkIdx); err != nil {
				return err
			}
		}

		rankBuf := make([]float32, chunkElems)
		covBuf := make([]float32, chunkElems)
		for k := 0; k < c.NumLevels(); k++ {
			rank, cov := c.rankCov(k)
			start := time.Now()
			if err := rank.GetChunk(rankBuf, chunkIdx); err != nil {
				return err
			}
			if err := cov.GetChunk(covBuf, chunkIdx); err != nil {
				return err
			}
			c.metrics.observeChunkDecompress(time.Since(start).Seconds())

			n := rank.ChunkLen(chunkIdx)
			for i := 0; i < n; i++ {
				v := rankBuf[i]
				for ti, t := range targets {
					if v == t {
						accums[ti][i] += covBuf[i]
					}
				}
			}
		}

		for i, h := range hashes {
			if err := results[h].SetChunk(accums[i], chunkIdx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.incMasksDecoded()
	return results, nil
}

// AllMasks decodes every object mask present in this Cryptomatte, keyed by
// name if a manifest is loaded, else by 8-character hex hash discovered by
// scanning the rank channels (spec §4.6.4). The zero hash — the "no
// object" sentinel — is never included among discovered ids, though it
// remains queryable explicitly via MaskByHash(0).
func (c *Cryptomatte) AllMasks() (map[string][]float32, error) {
	if man := c.metadata.Manifest; man != nil {
		names := man.Names()
		hashes := make([]uint32, len(names))
		for i, name := range names {
			h, err := man.HashU32(name)
			if err != nil {
				return nil, err
			}
			hashes[i] = h
		}
		byHash, err := c.masksByHashes(hashes)
		if err != nil {
			return nil, err
		}
		out := make(map[string][]float32, len(names))
		for i, name := range names {
			out[name] = byHash[hashes[i]]
		}
		return out, nil
	}

	ids, err := c.observedHashes()
	if err != nil {
		return nil, err
	}
	byHash, err := c.masksByHashes(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(ids))
	for _, h := range ids {
		out[manifest.Uint32ToHex(h)] = byHash[h]
	}
	return out, nil
}

// AllMasksCompressed is the compressed-output counterpart of AllMasks.
func (c *Cryptomatte) AllMasksCompressed() (map[string]*cchannel.Channel, error) {
	if man := c.metadata.Manifest; man != nil {
		names := man.Names()
		hashes := make([]uint32, len(names))
		for i, name := range names {
			h, err := man.HashU32(name)
			if err != nil {
				return nil, err
			}
			hashes[i] = h
		}
		byHash, err := c.masksCompressedByHashes(hashes)
		if err != nil {
			return nil, err
		}
		out := make(map[string]*cchannel.Channel, len(names))
		for i, name := range names {
			out[name] = byHash[hashes[i]]
		}
		return out, nil
	}

	ids, err := c.observedHashes()
	if err != nil {
		return nil, err
	}
	byHash, err := c.masksCompressedByHashes(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*cchannel.Channel, len(ids))
	for _, h := range ids {
		out[manifest.Uint32ToHex(h)] = byHash[h]
	}
	return out, nil
}

// observedHashes scans every rank channel for distinct non-zero hash
// values, for use by AllMasks/AllMasksCompressed when no manifest is
// loaded.
func (c *Cryptomatte) observedHashes() ([]uint32, error) {
	seen := make(map[uint32]bool)
	var order []uint32

	for k := 0; k < c.NumLevels(); k++ {
		rank, _ := c.rankCov(k)
		buf := make([]float32, rank.ChunkElems())
		for chunkIdx := 0; chunkIdx < rank.NumChunks(); chunkIdx++ {
			if err := rank.GetChunk(buf, chunkIdx); err != nil {
				return nil, err
			}
			for _, v := range buf[:rank.ChunkLen(chunkIdx)] {
				h := math.Float32bits(v)
				if h == 0 || seen[h] {
					continue
				}
				seen[h] = true
				order = append(order, h)
			}
		}
	}
	return order, nil
}

func valuesOf(m map[string]uint32) []uint32 {
	out := make([]uint32, 0, len(m))
	seen := make(map[uint32]bool, len(m))
	for _, v := range m {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
