package cryptomatte

import (
	"github.com/mrjoshuak/go-cryptomatte/chanref"
	"github.com/mrjoshuak/go-cryptomatte/cryptometa"
	"github.com/mrjoshuak/go-cryptomatte/imgsource"
)

// ValidateChannelStructure exposes the §3 contiguity/quad-completeness
// check as a standalone predicate, independent of actually constructing a
// Cryptomatte — original C++ API's util::validate_channel_structure
// (SPEC_FULL §4 supplemented features).
func ValidateChannelStructure(names []string, meta cryptometa.Metadata) (bool, error) {
	var refs []chanref.Ref
	for _, n := range names {
		if !meta.IsValidChannelName(n) {
			continue
		}
		r, err := chanref.Parse(n)
		if err != nil {
			return false, newErr(KindMalformedChannelName, "channel "+n, err)
		}
		refs = append(refs, r)
	}
	if len(refs) == 0 {
		return false, newErr(KindMalformedCryptomatte, "no rank/coverage channels for "+meta.Typename, nil)
	}
	if err := validateQuadStructure(refs); err != nil {
		return false, err
	}
	return true, nil
}

// Validate combines metadata validation and channel-structure validation
// over an opened image source, returning a human-readable reason on
// failure — original's validate(), whose C++ signature returns
// std::tuple<bool, std::string> (SPEC_FULL §4).
func Validate(src imgsource.ImageSource, path string) (bool, string) {
	reader, err := src.Open(path)
	if err != nil {
		return false, err.Error()
	}
	defer reader.Close()

	spec, err := reader.Spec()
	if err != nil {
		return false, err.Error()
	}

	if !imgsource.HasCryptomatte(spec) {
		return false, "no cryptomatte attributes found"
	}

	metas, err := cryptometa.FromMap(spec.Attributes, path, nil)
	if err != nil {
		return false, err.Error()
	}
	for _, m := range metas {
		if ok, err := ValidateChannelStructure(spec.ChannelNames, m); !ok {
			return false, err.Error()
		}
	}
	return true, ""
}
