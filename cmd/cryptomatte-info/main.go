// cryptomatte-info reports the Cryptomattes embedded in one or more EXR
// files: their typename, manifest size, dimensions, and level count, and
// (with -strict) rejects files whose channel layout fails §3 validation.
//
// Usage:
//
//	cryptomatte-info [-q|--quiet] [-strict] <filename> [<filename> ...]
//
// Options:
//
//	-q, --quiet   Only output errors. Exit code indicates pass/fail.
//	-strict       Treat a structurally invalid Cryptomatte as a file error.
//	-h, --help    Show this help message.
//	--version     Show version information.
//
// Exit codes:
//
//	0: every file has at least one valid Cryptomatte
//	1: one or more files had no Cryptomatte
//	2: error opening, reading or loading a file (a Cryptomatte that fails
//	   validation is reported this way)
package main

import (
	"fmt"
	"os"
	"strings"

	cryptomatte "github.com/mrjoshuak/go-cryptomatte"
	"github.com/mrjoshuak/go-cryptomatte/exrutil"
	"github.com/mrjoshuak/go-cryptomatte/imgsource"
)

const version = "1.0.0"

func main() {
	quiet := false
	strict := false
	var files []string

	for _, arg := range os.Args[1:] {
		switch arg {
		case "-q", "--quiet":
			quiet = true
		case "-strict":
			strict = true
		case "-h", "--help":
			printUsage()
			os.Exit(0)
		case "--version":
			fmt.Printf("cryptomatte-info version %s\n", version)
			os.Exit(0)
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "unknown option: %s\n", arg)
				printUsage()
				os.Exit(2)
			}
			files = append(files, arg)
		}
	}

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "error: no input files specified")
		printUsage()
		os.Exit(2)
	}

	src := imgsource.NewEXRSource()
	validCount := 0
	errorOccurred := false

	for _, filename := range files {
		ok, summary, err := inspect(src, filename, strict)
		if err != nil {
			errorOccurred = true
			if !quiet {
				fmt.Fprintf(os.Stderr, "%s: error: %v\n", filename, err)
			}
			continue
		}
		if ok {
			validCount++
		}
		if !quiet {
			fmt.Print(summary)
		} else if !ok {
			fmt.Fprintf(os.Stderr, "%s: invalid\n", filename)
		}
	}

	if len(files) > 1 && !quiet {
		fmt.Printf("\nSummary: %d of %d files have a valid Cryptomatte\n", validCount, len(files))
	}

	switch {
	case errorOccurred:
		os.Exit(2)
	case validCount < len(files):
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

// inspect validates and loads filename's Cryptomattes, returning a
// human-readable summary and whether it passed.
func inspect(src imgsource.ImageSource, filename string, strict bool) (bool, string, error) {
	// A structural EXR check runs ahead of the cryptomatte-specific one: a
	// corrupt or truncated file is worth reporting as such rather than as
	// a bare "no cryptomatte found".
	if fileResult, ferr := exrutil.ValidateFile(filename); ferr == nil && !fileResult.Valid {
		if strict {
			return false, "", fmt.Errorf("invalid EXR file: %s", strings.Join(fileResult.Errors, "; "))
		}
	}

	valid, reason := cryptomatte.Validate(src, filename)
	if !valid && strict {
		return false, "", fmt.Errorf("%s", reason)
	}

	cryptomattes, err := cryptomatte.Load(src, filename, cryptomatte.DefaultLoadOptions())
	if err != nil {
		return false, "", err
	}
	if len(cryptomattes) == 0 {
		return false, fmt.Sprintf("%s: no cryptomattes found\n", filename), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d cryptomatte(s)\n", filename, len(cryptomattes))
	if info, ferr := exrutil.GetFileInfo(filename); ferr == nil {
		fmt.Fprintf(&b, "  file: %dx%d, compression=%v, %d channel(s), %d bytes\n",
			info.Width, info.Height, info.Compression, len(info.Channels), info.FileSize)
	}
	for _, cm := range cryptomattes {
		meta := cm.Metadata()
		manifestSize := 0
		if meta.Manifest != nil {
			manifestSize = meta.Manifest.Size()
		}
		fmt.Fprintf(&b, "  %s (key=%s): %dx%d, %d level(s), %d manifest entries, preview=%v\n",
			meta.Typename, meta.Key, cm.Width(), cm.Height(), cm.NumLevels(), manifestSize, cm.HasPreview())
	}
	return true, b.String(), nil
}

func printUsage() {
	fmt.Println(`Usage: cryptomatte-info [options] <filename> [<filename> ...]

Report the Cryptomattes embedded in one or more EXR files.

Options:
  -q, --quiet   Only output errors. Exit code indicates pass/fail.
  -strict       Treat a structurally invalid Cryptomatte as a file error.
  -h, --help    Show this help message.
  --version     Show version information.

Exit codes:
  0: every file has at least one valid Cryptomatte
  1: one or more files had no Cryptomatte
  2: error opening, reading or loading a file (including an invalid Cryptomatte)`)
}
