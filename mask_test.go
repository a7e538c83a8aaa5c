package cryptomatte

import (
	"testing"

	"github.com/mrjoshuak/go-cryptomatte/internal/cryptomattetest"
)

func twoPixelFixture(t *testing.T) *Cryptomatte {
	t.Helper()
	builder := cryptomattetest.NewBuilder(2, 1, "CryptoObject", "abcdef01")
	builder.Set(0, 0, cryptomattetest.Level{Hash: 0x1234abcd, Coverage: 1.0})
	builder.Set(1, 0, cryptomattetest.Level{Hash: 0x1234abcd, Coverage: 0.5}, cryptomattetest.Level{Hash: 0x5678dcba, Coverage: 0.5})
	builder.ManifestJSON = `{"objectA":"1234abcd","objectB":"5678dcba"}`
	src := builder.Build("fixture.exr")

	cryptomattes, err := Load(src, "fixture.exr", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cryptomattes) != 1 {
		t.Fatalf("got %d cryptomattes, want 1", len(cryptomattes))
	}
	return cryptomattes[0]
}

func TestMaskByName(t *testing.T) {
	cm := twoPixelFixture(t)

	mask, err := cm.Mask("objectA")
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	want := []float32{1.0, 0.5}
	for i := range want {
		if mask[i] != want[i] {
			t.Fatalf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}

func TestMaskUnknownNameStrict(t *testing.T) {
	cm := twoPixelFixture(t)
	_, err := cm.Mask("nonexistent")
	if err == nil {
		t.Fatal("expected an error")
	}
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != KindUnknownName {
		t.Fatalf("got %v, want KindUnknownName", err)
	}
}

func TestMaskByHashPermissiveForUnknownHash(t *testing.T) {
	cm := twoPixelFixture(t)
	mask, err := cm.MaskByHash(0xdeadbeef)
	if err != nil {
		t.Fatalf("MaskByHash: %v", err)
	}
	for i, v := range mask {
		if v != 0 {
			t.Fatalf("mask[%d] = %v, want 0", i, v)
		}
	}
}

func TestMaskLinearityAcrossRanks(t *testing.T) {
	cm := twoPixelFixture(t)
	a, err := cm.Mask("objectA")
	if err != nil {
		t.Fatalf("Mask A: %v", err)
	}
	b, err := cm.Mask("objectB")
	if err != nil {
		t.Fatalf("Mask B: %v", err)
	}
	// Pixel 1 splits coverage 0.5/0.5 between two ranks; pixel 0 is fully
	// objectA with no second rank.
	if a[0]+b[0] != 1.0 {
		t.Fatalf("pixel 0 coverage sum = %v, want 1.0", a[0]+b[0])
	}
	if a[1]+b[1] != 1.0 {
		t.Fatalf("pixel 1 coverage sum = %v, want 1.0", a[1]+b[1])
	}
}

func TestMasksBatchEquivalence(t *testing.T) {
	cm := twoPixelFixture(t)

	single := make(map[string][]float32)
	for _, name := range []string{"objectA", "objectB"} {
		m, err := cm.Mask(name)
		if err != nil {
			t.Fatalf("Mask(%s): %v", name, err)
		}
		single[name] = m
	}

	batch, err := cm.Masks([]string{"objectA", "objectB"})
	if err != nil {
		t.Fatalf("Masks: %v", err)
	}

	for name, m := range single {
		bm, ok := batch[name]
		if !ok {
			t.Fatalf("batch missing %s", name)
		}
		for i := range m {
			if m[i] != bm[i] {
				t.Fatalf("%s[%d]: single=%v batch=%v", name, i, m[i], bm[i])
			}
		}
	}
}

func TestMaskCompressedParityWithFlat(t *testing.T) {
	cm := twoPixelFixture(t)

	flat, err := cm.Mask("objectA")
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	compressed, err := cm.MaskCompressed("objectA")
	if err != nil {
		t.Fatalf("MaskCompressed: %v", err)
	}
	decoded, err := compressed.GetDecompressed()
	if err != nil {
		t.Fatalf("GetDecompressed: %v", err)
	}
	for i := range flat {
		if flat[i] != decoded[i] {
			t.Fatalf("pixel %d: flat=%v compressed=%v", i, flat[i], decoded[i])
		}
	}
}

func TestAllMasksUsesManifestOrder(t *testing.T) {
	cm := twoPixelFixture(t)
	all, err := cm.AllMasks()
	if err != nil {
		t.Fatalf("AllMasks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d masks, want 2", len(all))
	}
	if _, ok := all["objectA"]; !ok {
		t.Fatal("missing objectA")
	}
	if _, ok := all["objectB"]; !ok {
		t.Fatal("missing objectB")
	}
}

func TestAllMasksScansWithoutManifest(t *testing.T) {
	builder := cryptomattetest.NewBuilder(2, 1, "CryptoObject", "abcdef01")
	builder.Set(0, 0, cryptomattetest.Level{Hash: 0x1234abcd, Coverage: 1.0})
	builder.Set(1, 0, cryptomattetest.Level{Hash: 0x5678dcba, Coverage: 1.0})
	src := builder.Build("fixture2.exr")

	cryptomattes, err := Load(src, "fixture2.exr", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cm := cryptomattes[0]

	all, err := cm.AllMasks()
	if err != nil {
		t.Fatalf("AllMasks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d masks, want 2", len(all))
	}
	if _, ok := all["1234abcd"]; !ok {
		t.Fatal("missing hex-keyed mask for 1234abcd")
	}
	if _, ok := all["5678dcba"]; !ok {
		t.Fatal("missing hex-keyed mask for 5678dcba")
	}
}

func TestAllMasksScansWithoutManifestIncludesNegativeZeroBitPattern(t *testing.T) {
	builder := cryptomattetest.NewBuilder(2, 1, "CryptoObject", "abcdef01")
	builder.Set(0, 0, cryptomattetest.Level{Hash: 0x80000000, Coverage: 1.0})
	builder.Set(1, 0, cryptomattetest.Level{Hash: 0x5678dcba, Coverage: 1.0})
	src := builder.Build("fixture3.exr")

	cryptomattes, err := Load(src, "fixture3.exr", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cm := cryptomattes[0]

	all, err := cm.AllMasks()
	if err != nil {
		t.Fatalf("AllMasks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d masks, want 2", len(all))
	}
	if _, ok := all["80000000"]; !ok {
		t.Fatal("missing hex-keyed mask for 80000000 (-0.0 bit pattern wrongly treated as sentinel)")
	}
	if _, ok := all["5678dcba"]; !ok {
		t.Fatal("missing hex-keyed mask for 5678dcba")
	}
}

func TestMaskWithNoManifestFails(t *testing.T) {
	builder := cryptomattetest.NewBuilder(1, 1, "CryptoObject", "abcdef01")
	builder.Set(0, 0, cryptomattetest.Level{Hash: 0x1234abcd, Coverage: 1.0})
	src := builder.Build("fixture3.exr")

	cryptomattes, err := Load(src, "fixture3.exr", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cm := cryptomattes[0]

	_, err = cm.Mask("objectA")
	if err == nil {
		t.Fatal("expected an error")
	}
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != KindNoManifest {
		t.Fatalf("got %v, want KindNoManifest", err)
	}
}
