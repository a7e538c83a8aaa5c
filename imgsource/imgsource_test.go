package imgsource

import "testing"

func TestHasCryptomatte(t *testing.T) {
	spec := Spec{Attributes: map[string]string{
		"cryptomatte/abc123/name": "CryptoAsset",
		"owner":                   "studio",
	}}
	if !HasCryptomatte(spec) {
		t.Fatalf("expected HasCryptomatte to be true")
	}

	empty := Spec{Attributes: map[string]string{"owner": "studio"}}
	if HasCryptomatte(empty) {
		t.Fatalf("expected HasCryptomatte to be false")
	}
}

func TestNumCryptomattes(t *testing.T) {
	spec := Spec{Attributes: map[string]string{
		"cryptomatte/abc123/name": "CryptoAsset",
		"cryptomatte/abc123/hash": "MurmurHash3_32",
		"cryptomatte/def456/name": "CryptoMaterial",
		"owner":                   "studio",
	}}
	if got := NumCryptomattes(spec); got != 2 {
		t.Fatalf("NumCryptomattes() = %d, want 2", got)
	}
}

func TestNumCryptomattesEmpty(t *testing.T) {
	if got := NumCryptomattes(Spec{Attributes: map[string]string{}}); got != 0 {
		t.Fatalf("NumCryptomattes() = %d, want 0", got)
	}
}

func TestPixelTypeString(t *testing.T) {
	cases := map[PixelType]string{
		PixelTypeHalf:    "half",
		PixelTypeFloat32: "float32",
		PixelTypeUint32:  "uint32",
		PixelTypeUnknown: "unknown",
	}
	for pt, want := range cases {
		if got := pt.String(); got != want {
			t.Fatalf("%v.String() = %q, want %q", pt, got, want)
		}
	}
}
