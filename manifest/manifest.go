// Package manifest implements the Cryptomatte name↔hash manifest: an
// insertion-ordered table mapping human-readable object names to 32-bit
// hashes, loadable from an embedded JSON string, a sidecar JSON file, or an
// in-memory name/hash mapping.
package manifest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// entry is one (name, hash) pair, kept in insertion order.
type entry struct {
	name string
	hash uint32
}

// Manifest is an ordered name→hash(u32) table. Order is insertion order as
// seen in the JSON source (or as passed to FromMapping); it is meaningful
// for iteration but not for lookup correctness. The core does not reject
// duplicate names — first insertion wins on lookup.
type Manifest struct {
	entries []entry
	index   map[string]int // name -> index of first occurrence in entries
}

func newManifest(capacity int) *Manifest {
	return &Manifest{
		entries: make([]entry, 0, capacity),
		index:   make(map[string]int, capacity),
	}
}

func (m *Manifest) insert(name string, hash uint32) {
	if _, exists := m.index[name]; exists {
		return // first-insertion wins
	}
	m.index[name] = len(m.entries)
	m.entries = append(m.entries, entry{name: name, hash: hash})
}

// JSONError reports a failure decoding a manifest's JSON source.
type JSONError struct {
	Err error
}

func (e *JSONError) Error() string { return fmt.Sprintf("manifest: invalid JSON: %v", e.Err) }

func (e *JSONError) Unwrap() error { return e.Err }

// FromJSONString parses a JSON object mapping names to 8-character
// lowercase hex hash strings, preserving the object's key order.
func FromJSONString(text string) (*Manifest, error) {
	m := newManifest(0)

	iter := jsoniter.ParseString(jsoniter.ConfigCompatibleWithStandardLibrary, text)
	var parseErr error
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, name string) bool {
		hexVal := iter.ReadString()
		if iter.Error != nil {
			parseErr = &JSONError{Err: iter.Error}
			return false
		}
		hash, err := HexToUint32(hexVal)
		if err != nil {
			parseErr = err
			return false
		}
		m.insert(name, hash)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if iter.Error != nil {
		return nil, &JSONError{Err: iter.Error}
	}
	return m, nil
}

// NamedHash is one (name, hex-hash) pair for FromMapping.
type NamedHash struct {
	Name string
	Hex  string
}

// FromMapping builds a Manifest from an ordered sequence of (name, hex8)
// pairs, in the order given.
func FromMapping(pairs []NamedHash) (*Manifest, error) {
	m := newManifest(len(pairs))
	for _, p := range pairs {
		hash, err := HexToUint32(p.Hex)
		if err != nil {
			return nil, err
		}
		m.insert(p.Name, hash)
	}
	return m, nil
}

// FromU32Mapping builds a Manifest directly from already-decoded hashes.
func FromU32Mapping(pairs map[string]uint32, order []string) *Manifest {
	m := newManifest(len(order))
	for _, name := range order {
		if hash, ok := pairs[name]; ok {
			m.insert(name, hash)
		}
	}
	return m
}

// Load scans a flat metadata map (as extracted from an image file's
// attributes) for an embedded or sidecar Cryptomatte manifest, returning
// the first match found. The two forms are mutually exclusive per the
// Cryptomatte spec, but this is a lenient reader: it does not enforce
// that, it simply takes whichever key it encounters first.
//
// imagePath is used to resolve sidecar manifest paths relative to its
// parent directory. A nil logger disables warning output.
func Load(metadataMap map[string]string, imagePath string, logger *zap.Logger) (*Manifest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for key, val := range metadataMap {
		if !strings.Contains(key, "cryptomatte") {
			continue
		}

		if strings.Contains(key, "manifest") {
			return FromJSONString(val)
		}

		if strings.Contains(key, "manif_file") {
			sidecar := val
			if !filepath.IsAbs(sidecar) {
				sidecar = filepath.Join(filepath.Dir(imagePath), sidecar)
			}
			data, err := os.ReadFile(sidecar)
			if err != nil {
				logger.Warn("cryptomatte sidecar manifest not found, continuing scan",
					zap.String("path", sidecar), zap.Error(err))
				continue
			}
			return FromJSONString(string(data))
		}
	}

	return nil, nil
}

// Contains reports whether name is present in the manifest.
func (m *Manifest) Contains(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Size returns the number of entries in the manifest.
func (m *Manifest) Size() int {
	return len(m.entries)
}

// Names returns the manifest's names in insertion (JSON source) order.
func (m *Manifest) Names() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.name
	}
	return out
}

// KeyNotFoundError reports a hash lookup for a name absent from the
// manifest.
type KeyNotFoundError struct {
	Name string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("manifest: name %q not found", e.Name)
}

// HashU32 resolves name to its u32 hash.
func (m *Manifest) HashU32(name string) (uint32, error) {
	i, ok := m.index[name]
	if !ok {
		return 0, &KeyNotFoundError{Name: name}
	}
	return m.entries[i].hash, nil
}

// HashFloat32 resolves name to its hash, bit-cast to a float32 — this is
// the representation stored in a Cryptomatte rank channel.
func (m *Manifest) HashFloat32(name string) (float32, error) {
	u, err := m.HashU32(name)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

// HashHex resolves name to its 8-character lowercase hex hash.
func (m *Manifest) HashHex(name string) (string, error) {
	u, err := m.HashU32(name)
	if err != nil {
		return "", err
	}
	return Uint32ToHex(u), nil
}

// MappingU32 returns the manifest's (name, hash) pairs as u32, in
// insertion order.
func (m *Manifest) MappingU32() []NameValue[uint32] {
	out := make([]NameValue[uint32], len(m.entries))
	for i, e := range m.entries {
		out[i] = NameValue[uint32]{Name: e.name, Value: e.hash}
	}
	return out
}

// MappingFloat32 returns the manifest's (name, hash) pairs with the hash
// bit-cast to float32, in insertion order.
func (m *Manifest) MappingFloat32() []NameValue[float32] {
	out := make([]NameValue[float32], len(m.entries))
	for i, e := range m.entries {
		out[i] = NameValue[float32]{Name: e.name, Value: math.Float32frombits(e.hash)}
	}
	return out
}

// MappingHex returns the manifest's (name, hash) pairs as hex strings, in
// insertion order.
func (m *Manifest) MappingHex() []NameValue[string] {
	out := make([]NameValue[string], len(m.entries))
	for i, e := range m.entries {
		out[i] = NameValue[string]{Name: e.name, Value: Uint32ToHex(e.hash)}
	}
	return out
}

// NameValue pairs a manifest name with one of its three hash views.
type NameValue[T any] struct {
	Name  string
	Value T
}

// HashByIndex returns the i-th entry's hash, for callers iterating the
// manifest positionally (e.g. the mask decoder's batched path).
func (m *Manifest) HashByIndex(i int) uint32 {
	return m.entries[i].hash
}
