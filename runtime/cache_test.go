package runtime

import "testing"

func TestFingerprintOfIsDeterministic(t *testing.T) {
	module := []byte{0x07, 0x23, 0x02, 0x03, 1, 2, 3, 4}
	a := FingerprintOf(module)
	b := FingerprintOf(append([]byte(nil), module...))
	if a != b {
		t.Error("FingerprintOf should be deterministic over identical bytes")
	}
}

func TestFingerprintOfDiffersOnContent(t *testing.T) {
	a := FingerprintOf([]byte{1, 2, 3})
	b := FingerprintOf([]byte{1, 2, 4})
	if a == b {
		t.Error("FingerprintOf should differ for differing module bytes")
	}
}

func TestCompilationCacheLookupMiss(t *testing.T) {
	c := newCompilationCache()
	if _, ok := c.Lookup(FingerprintOf([]byte("nothing compiled"))); ok {
		t.Error("Lookup should miss on an empty cache")
	}
}
