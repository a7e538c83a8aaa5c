package cryptomatte

import (
	"errors"

	"github.com/mrjoshuak/go-cryptomatte/cchannel"
	"github.com/mrjoshuak/go-cryptomatte/cryptometa"
	"github.com/mrjoshuak/go-cryptomatte/imgsource"
	"github.com/mrjoshuak/go-cryptomatte/manifest"
)

// Load opens path via src, extracts every Cryptomatte's metadata, and
// decodes exactly the channels each one needs into compressed Channels —
// the image loader façade of spec §4.5 (C6). Returns an empty slice (not
// an error) if the file has no Cryptomatte attributes at all.
func Load(src imgsource.ImageSource, path string, opts LoadOptions) ([]*Cryptomatte, error) {
	logger := opts.logger()

	reader, err := src.Open(path)
	if err != nil {
		return nil, newErr(KindIOError, "opening "+path, err)
	}
	defer reader.Close()

	spec, err := reader.Spec()
	if err != nil {
		return nil, newErr(KindIOError, "reading spec of "+path, err)
	}

	metas, err := cryptometa.FromMap(spec.Attributes, path, logger)
	if err != nil {
		return nil, translateMetaErr(err)
	}
	if len(metas) == 0 {
		return nil, nil
	}

	// Union every Metadata's required channel names, preserving one
	// canonical order, and request exactly that set from the reader in a
	// single call (spec §4.5 step 4).
	var wanted []string
	seen := make(map[string]bool)
	perMetaRank := make([][]string, len(metas))
	perMetaLegacy := make([][]string, len(metas))
	for i, m := range metas {
		rank := m.ChannelNames(spec.ChannelNames)
		perMetaRank[i] = rank
		addAll(&wanted, seen, rank)

		if opts.LoadPreview {
			legacy := m.LegacyChannelNames(spec.ChannelNames)
			perMetaLegacy[i] = legacy
			addAll(&wanted, seen, legacy)
		}
	}

	pixels, err := reader.ReadChannels(wanted)
	if err != nil {
		return nil, translateReadErr(err)
	}

	cfg := opts.channelCfg()
	m := newMetrics(opts.Registerer)

	cryptomattes := make([]*Cryptomatte, 0, len(metas))
	for i, meta := range metas {
		rankChannels := make(map[string]*cchannel.Channel, len(perMetaRank[i]))
		for _, name := range perMetaRank[i] {
			ch, err := compressChannel(pixels, name, spec.Width, spec.Height, cfg, m)
			if err != nil {
				return nil, err
			}
			rankChannels[name] = ch
		}

		legacyChannels := make(map[string]*cchannel.Channel, len(perMetaLegacy[i]))
		for _, name := range perMetaLegacy[i] {
			ch, err := compressChannel(pixels, name, spec.Width, spec.Height, cfg, m)
			if err != nil {
				return nil, err
			}
			legacyChannels[name] = ch
		}

		cm, err := New(rankChannels, legacyChannels, meta)
		if err != nil {
			return nil, err
		}
		cm.metrics = m
		cm.logger = logger
		cm.workers = opts.workers()
		cryptomattes = append(cryptomattes, cm)
	}

	return cryptomattes, nil
}

func addAll(dst *[]string, seen map[string]bool, names []string) {
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			*dst = append(*dst, n)
		}
	}
}

func compressChannel(pixels map[string][]float32, name string, width, height int, cfg cchannel.Config, m *metrics) (*cchannel.Channel, error) {
	data, ok := pixels[name]
	if !ok {
		return nil, newErr(KindMissingChannel, name, nil)
	}
	ch, err := cchannel.FromPixels(data, width, height, cfg)
	if err != nil {
		return nil, newErr(KindInvalidShape, name, err)
	}
	m.addLoadedChannelBytes(float64(ch.UncompressedSize()))
	return ch, nil
}

// translateMetaErr translates the typed errors cryptometa.FromMap and its
// manifest.Load collaborator can return into the root Kind taxonomy,
// unwrapping with errors.As so a caller can still reach the original
// *cryptometa.ParseError/*manifest.HexDecodeError/*manifest.JSONError via
// errors.As on the returned *Error.
func translateMetaErr(err error) error {
	var parseErr *cryptometa.ParseError
	if errors.As(err, &parseErr) {
		return newErr(metaParseKind(parseErr.Kind), parseErr.Key+": "+parseErr.Msg, err)
	}

	var hexErr *manifest.HexDecodeError
	if errors.As(err, &hexErr) {
		return newErr(KindHexDecode, hexErr.Value, err)
	}

	var keyErr *manifest.KeyNotFoundError
	if errors.As(err, &keyErr) {
		return newErr(KindUnknownName, keyErr.Name, err)
	}

	var jsonErr *manifest.JSONError
	if errors.As(err, &jsonErr) {
		return newErr(KindJSON, "manifest", err)
	}

	return newErr(KindMalformedCryptomatte, "metadata", err)
}

func metaParseKind(kind string) Kind {
	switch kind {
	case "MalformedKey":
		return KindMalformedKey
	case "UnknownAttribute":
		return KindUnknownAttribute
	case "MissingRequired":
		return KindMissingRequired
	case "TypeError":
		return KindTypeError
	case "UnsupportedHash":
		return KindUnsupportedHash
	case "UnsupportedConversion":
		return KindUnsupportedConversion
	default:
		return KindMalformedCryptomatte
	}
}

func translateReadErr(err error) error {
	switch e := err.(type) {
	case *imgsource.UnsupportedPixelTypeError:
		return newErr(KindUnsupportedPixelType, e.Channel, e)
	case *imgsource.MissingChannelError:
		return newErr(KindMissingChannel, e.Channel, e)
	case *imgsource.IOError:
		return newErr(KindIOError, e.Path, e)
	default:
		return newErr(KindIOError, "read_channels", err)
	}
}
