// Package exrutil provides file-level EXR introspection used alongside the
// cryptomatte package's channel-specific reading: summary info, layer
// grouping, and structural validation of a whole file, independent of any
// one Cryptomatte embedded in it.
//
// Example usage:
//
//	info, _ := exrutil.GetFileInfo("render.exr")
//	fmt.Printf("Size: %dx%d, Channels: %v\n", info.Width, info.Height, info.Channels)
package exrutil

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mrjoshuak/go-cryptomatte/exr"
)

// ===========================================
// File Information
// ===========================================

// FileInfo provides a summary of an EXR file.
type FileInfo struct {
	Path        string
	Width       int
	Height      int
	Compression exr.Compression
	IsTiled     bool
	TileWidth   int
	TileHeight  int
	IsDeep      bool
	IsMultiPart bool
	NumParts    int
	Channels    []string
	HasPreview  bool
	FileSize    int64
}

// GetFileInfo returns summary information about an EXR file.
func GetFileInfo(path string) (*FileInfo, error) {
	// Get file size
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := exr.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := f.Header(0)
	info := &FileInfo{
		Path:        path,
		Width:       h.Width(),
		Height:      h.Height(),
		Compression: h.Compression(),
		IsTiled:     h.IsTiled(),
		IsDeep:      f.IsDeep(),
		IsMultiPart: f.IsMultiPart(),
		NumParts:    f.NumParts(),
		HasPreview:  h.HasPreview(),
		FileSize:    stat.Size(),
	}

	// Get channel names
	if cl := h.Channels(); cl != nil {
		for _, ch := range cl.Channels() {
			info.Channels = append(info.Channels, ch.Name)
		}
	}

	// Get tile info if tiled
	if info.IsTiled {
		if td := h.TileDescription(); td != nil {
			info.TileWidth = int(td.XSize)
			info.TileHeight = int(td.YSize)
		}
	}

	return info, nil
}

// ===========================================
// Channel Utilities
// ===========================================
//
// Per-channel extraction (the teacher's ExtractChannel/ExtractChannels, each
// opening its own FrameBuffer and issuing its own read pass) is deliberately
// not carried here: imgsource.EXRSource.ReadChannels batches every wanted
// channel into a single FrameBuffer and a single read call, per spec §4.5's
// "request... exactly that set in one call" — reintroducing a per-channel
// read path would undercut that invariant, so it was dropped rather than
// adapted.

// SplitLayers returns channel names grouped by layer (dot-separated prefix).
// Channels without a layer prefix are grouped under an empty string key.
func SplitLayers(h *exr.Header) map[string][]string {
	layers := make(map[string][]string)

	cl := h.Channels()
	if cl == nil {
		return layers
	}

	for _, ch := range cl.Channels() {
		layer := ""
		name := ch.Name

		// Find the last dot to separate layer from channel
		if idx := strings.LastIndex(ch.Name, "."); idx >= 0 {
			layer = ch.Name[:idx]
			name = ch.Name[idx+1:]
		}

		layers[layer] = append(layers[layer], name)
	}

	return layers
}

// ListLayers returns a sorted list of layer names in the file.
// Returns an empty slice if there are no layers (all channels at root level).
func ListLayers(h *exr.Header) []string {
	layerMap := SplitLayers(h)

	var layers []string
	for layer := range layerMap {
		if layer != "" {
			layers = append(layers, layer)
		}
	}

	sort.Strings(layers)
	return layers
}

// ===========================================
// Validation
// ===========================================

// ValidationResult contains the results of file validation.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// ValidateFile performs comprehensive validation of an EXR file.
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}

	// Check file exists and is readable
	stat, err := os.Stat(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("cannot access file: %v", err))
		return result, nil
	}

	if stat.Size() < 8 {
		result.Valid = false
		result.Errors = append(result.Errors, "file too small to be valid EXR")
		return result, nil
	}

	// Try to open the file
	f, err := exr.OpenFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("cannot open file: %v", err))
		return result, nil
	}
	defer f.Close()

	h := f.Header(0)

	// Validate header
	if err := h.Validate(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("header validation failed: %v", err))
	}

	// Check for empty image
	if h.Width() == 0 || h.Height() == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "image has zero dimensions")
	}

	// Check for channels
	cl := h.Channels()
	if cl == nil || cl.Len() == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "no channels defined")
	}

	// Warnings for unusual configurations
	if h.Width() > 32768 || h.Height() > 32768 {
		result.Warnings = append(result.Warnings, "very large image dimensions")
	}

	if cl != nil && cl.Len() > 100 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("large number of channels: %d", cl.Len()))
	}

	// Check compression is valid
	comp := h.Compression()
	if comp > exr.CompressionDWAB {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown compression type: %d", comp))
	}

	return result, nil
}
