// Package cryptometa parses the flat "cryptomatte/<key>/<attr>" attribute
// map of a multi-layer image into one or more Cryptomatte descriptors.
package cryptometa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mrjoshuak/go-cryptomatte/chanref"
	"github.com/mrjoshuak/go-cryptomatte/manifest"
	"go.uber.org/zap"
)

const (
	hashMethodCanonical       = "MurmurHash3_32"
	conversionMethodCanonical = "uint32_to_float32"
)

const attrPrefix = "cryptomatte"

// Metadata describes one Cryptomatte embedded in an image file.
type Metadata struct {
	Typename         string
	Key              string
	HashMethod       string
	ConversionMethod string
	Manifest         *manifest.Manifest // nil if absent
}

// ParseError reports a structural problem with the cryptomatte/<key>/<attr>
// attribute encoding.
type ParseError struct {
	Kind string // one of: MalformedKey, UnknownAttribute, TypeError, MissingRequired, UnsupportedHash, UnsupportedConversion
	Key  string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cryptometa: %s (%s): %s", e.Kind, e.Key, e.Msg)
}

// FromMap groups a flat image-attribute map by Cryptomatte key and parses
// each group into a Metadata, sorted by Typename (the public, deterministic
// ordering of multiple Cryptomattes in one file — do not rely on map
// iteration order, which Go itself randomizes).
func FromMap(attribs map[string]string, imagePath string, logger *zap.Logger) ([]Metadata, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	groups := make(map[string]map[string]string)
	var groupOrder []string

	for fullKey, val := range attribs {
		if !strings.HasPrefix(fullKey, attrPrefix+"/") {
			continue
		}
		parts := strings.SplitN(fullKey, "/", 3)
		if len(parts) < 3 {
			return nil, &ParseError{Kind: "MalformedKey", Key: fullKey, Msg: "expected cryptomatte/<key>/<attr>"}
		}
		key, attr := parts[1], parts[2]

		switch attr {
		case "name", "hash", "conversion", "manifest", "manif_file":
		default:
			return nil, &ParseError{Kind: "UnknownAttribute", Key: fullKey, Msg: "attr " + quoted(attr)}
		}

		g, ok := groups[key]
		if !ok {
			g = make(map[string]string)
			groups[key] = g
			groupOrder = append(groupOrder, key)
		}
		g[attr] = val
	}

	result := make([]Metadata, 0, len(groupOrder))
	for _, key := range groupOrder {
		g := groups[key]

		name, ok := g["name"]
		if !ok {
			return nil, &ParseError{Kind: "MissingRequired", Key: key, Msg: "missing name"}
		}
		hashMethod, ok := g["hash"]
		if !ok {
			return nil, &ParseError{Kind: "MissingRequired", Key: key, Msg: "missing hash"}
		}
		conversionMethod, ok := g["conversion"]
		if !ok {
			return nil, &ParseError{Kind: "MissingRequired", Key: key, Msg: "missing conversion"}
		}
		if hashMethod != hashMethodCanonical {
			return nil, &ParseError{Kind: "UnsupportedHash", Key: key, Msg: hashMethod}
		}
		if conversionMethod != conversionMethodCanonical {
			return nil, &ParseError{Kind: "UnsupportedConversion", Key: key, Msg: conversionMethod}
		}

		// Re-derive the full-key sub-map restricted to manifest/manif_file
		// so manifest.Load can scan it using its own substring rules.
		sub := make(map[string]string)
		if v, ok := g["manifest"]; ok {
			sub[attrPrefix+"/"+key+"/manifest"] = v
		}
		if v, ok := g["manif_file"]; ok {
			sub[attrPrefix+"/"+key+"/manif_file"] = v
		}
		man, err := manifest.Load(sub, imagePath, logger)
		if err != nil {
			return nil, err
		}

		result = append(result, Metadata{
			Typename:         name,
			Key:              key,
			HashMethod:       hashMethod,
			ConversionMethod: conversionMethod,
			Manifest:         man,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Typename < result[j].Typename })
	return result, nil
}

func quoted(s string) string { return "\"" + s + "\"" }

// ChannelNames filters allNames down to rank/coverage channel names whose
// typename equals m.Typename.
func (m Metadata) ChannelNames(allNames []string) []string {
	var out []string
	for _, n := range allNames {
		if chanref.IsValid(n, m.Typename) {
			out = append(out, n)
		}
	}
	return out
}

// LegacyChannelNames filters allNames down to legacy (preview) channel
// names whose typename equals m.Typename.
func (m Metadata) LegacyChannelNames(allNames []string) []string {
	var out []string
	for _, n := range allNames {
		if chanref.IsValidLegacy(n, m.Typename) {
			out = append(out, n)
		}
	}
	return out
}

// IsValidChannelName reports whether s is a rank/coverage channel of this
// Cryptomatte.
func (m Metadata) IsValidChannelName(s string) bool {
	return chanref.IsValid(s, m.Typename)
}

// IsValidLegacyChannelName reports whether s is a legacy/preview channel of
// this Cryptomatte.
func (m Metadata) IsValidLegacyChannelName(s string) bool {
	return chanref.IsValidLegacy(s, m.Typename)
}

// ValidateMetadata reports whether a raw attribute map parses as
// Cryptomatte metadata. It runs the full FromMap parse (manifests
// included, with no image path for sidecar resolution) and discards the
// result — grounded on the original C++ API's util::validate_metadata.
func ValidateMetadata(attribs map[string]string) (bool, error) {
	_, err := FromMap(attribs, "", nil)
	if err != nil {
		return false, err
	}
	return true, nil
}
