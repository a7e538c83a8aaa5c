package exrutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-cryptomatte/exr"
)

func createTestFile(t *testing.T, dir string, name string, width, height int, compression exr.Compression) string {
	t.Helper()

	path := filepath.Join(dir, name)

	img := exr.NewRGBAImage(exr.RectFromSize(width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, float32(x)/float32(width), float32(y)/float32(height), 0.5, 1.0)
		}
	}

	out, err := exr.NewRGBAOutputFile(path, width, height)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	out.Header().SetCompression(compression)

	if err := out.WriteRGBA(img); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	return path
}

func TestGetFileInfo(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "test.exr", 100, 50, exr.CompressionZIP)

	info, err := GetFileInfo(path)
	if err != nil {
		t.Fatalf("GetFileInfo() error = %v", err)
	}

	if info.Width != 100 {
		t.Errorf("Width = %d, want 100", info.Width)
	}
	if info.Height != 50 {
		t.Errorf("Height = %d, want 50", info.Height)
	}
	if info.Compression != exr.CompressionZIP {
		t.Errorf("Compression = %v, want ZIP", info.Compression)
	}
	if info.IsTiled {
		t.Error("IsTiled = true, want false")
	}
	if info.FileSize == 0 {
		t.Error("FileSize = 0, want > 0")
	}
	if len(info.Channels) == 0 {
		t.Error("Channels is empty")
	}
}

func TestGetFileInfoNonexistent(t *testing.T) {
	_, err := GetFileInfo("/nonexistent/file.exr")
	if err == nil {
		t.Error("GetFileInfo() should return error for nonexistent file")
	}
}

func TestSplitLayers(t *testing.T) {
	h := exr.NewHeader()

	cl := exr.NewChannelList()
	cl.Add(exr.Channel{Name: "R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "G", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "B", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "diffuse.R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "diffuse.G", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "diffuse.B", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "specular.R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	h.SetChannels(cl)

	layers := SplitLayers(h)

	if root, ok := layers[""]; !ok {
		t.Error("No root layer found")
	} else if len(root) != 3 {
		t.Errorf("Root layer has %d channels, want 3", len(root))
	}

	if diffuse, ok := layers["diffuse"]; !ok {
		t.Error("No diffuse layer found")
	} else if len(diffuse) != 3 {
		t.Errorf("Diffuse layer has %d channels, want 3", len(diffuse))
	}

	if specular, ok := layers["specular"]; !ok {
		t.Error("No specular layer found")
	} else if len(specular) != 1 {
		t.Errorf("Specular layer has %d channels, want 1", len(specular))
	}
}

func TestListLayers(t *testing.T) {
	h := exr.NewHeader()

	cl := exr.NewChannelList()
	cl.Add(exr.Channel{Name: "R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "diffuse.R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "specular.R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "ao.R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	h.SetChannels(cl)

	layers := ListLayers(h)

	if len(layers) != 3 {
		t.Errorf("len(layers) = %d, want 3", len(layers))
	}

	expected := []string{"ao", "diffuse", "specular"}
	for i, name := range expected {
		if i >= len(layers) || layers[i] != name {
			t.Errorf("layers[%d] = %q, want %q", i, layers[i], name)
		}
	}
}

func TestListLayersWithRootChannels(t *testing.T) {
	h := exr.NewHeader()

	cl := exr.NewChannelList()
	cl.Add(exr.Channel{Name: "R", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	cl.Add(exr.Channel{Name: "G", Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	h.SetChannels(cl)

	layers := ListLayers(h)
	if len(layers) != 0 {
		t.Errorf("len(layers) = %d, want 0 for root-only channels", len(layers))
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "test.exr", 100, 100, exr.CompressionZIP)

	result, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile() error = %v", err)
	}

	if !result.Valid {
		t.Errorf("ValidateFile() Valid = false, want true. Errors: %v", result.Errors)
	}
}

func TestValidateFileNonexistent(t *testing.T) {
	result, err := ValidateFile("/nonexistent/file.exr")
	if err != nil {
		t.Fatalf("ValidateFile() error = %v", err)
	}

	if result.Valid {
		t.Error("ValidateFile() Valid = true for nonexistent file, want false")
	}
}

func TestValidateFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.exr")

	if err := os.WriteFile(path, []byte("not an exr file"), 0644); err != nil {
		t.Fatalf("Failed to create invalid file: %v", err)
	}

	result, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile() error = %v", err)
	}

	if result.Valid {
		t.Error("ValidateFile() Valid = true for invalid file, want false")
	}
}

func TestValidateFileTooSmall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.exr")

	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatalf("Failed to create tiny file: %v", err)
	}

	result, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("ValidateFile() error = %v", err)
	}
	if result.Valid {
		t.Error("ValidateFile() Valid = true for undersized file, want false")
	}
}
