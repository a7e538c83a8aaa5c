package manifest

import "encoding/binary"

// MurmurHash3_32 computes the 32-bit MurmurHash3 hash of data. This is the
// hash algorithm named by Cryptomatte's "MurmurHash3_32" hash_method
// attribute (spec §3, §6). The core does not need to compute hashes from
// names at read time — manifests always arrive pre-hashed — but the
// algorithm is kept alongside the manifest it identifies so that tests and
// tooling can build fixtures with known name→hash pairs.
func MurmurHash3_32(data []byte, seed uint32) uint32 {
	const c1 = 0xcc9e2d51
	const c2 = 0x1b873593
	const r1 = 15
	const r2 = 13
	const m = 5
	const n = 0xe6546b64

	h := seed
	length := len(data)
	nblocks := length / 4

	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4:])
		k *= c1
		k = rotl32(k, r1)
		k *= c2

		h ^= k
		h = rotl32(h, r2)
		h = h*m + n
	}

	tail := data[nblocks*4:]
	var k uint32
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = rotl32(k, r1)
		k *= c2
		h ^= k
	}

	h ^= uint32(length)
	h = fmix32(h)
	return h
}

// CryptomatteHash computes the Cryptomatte-convention hash for name: the
// MurmurHash3_32 of the UTF-8 bytes, with bit 23 flipped whenever the
// resulting float32 exponent field would be 0 or 255, so that the hash
// never reinterprets as a denormal, NaN, or Infinity. This mirrors the
// reference Python implementation (cryptomatte_utilities.py).
func CryptomatteHash(name string) uint32 {
	hash := MurmurHash3_32([]byte(name), 0)
	exp := (hash >> 23) & 0xFF
	if exp == 0 || exp == 255 {
		hash ^= 1 << 23
	}
	return hash
}

func rotl32(x uint32, r int) uint32 {
	return (x << r) | (x >> (32 - r))
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
