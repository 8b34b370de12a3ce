package runtime

import "testing"

func TestRegionHeadOffsetAndSize(t *testing.T) {
	root := &Region{size: 1024}
	a := &Allocator{}

	crop, err := a.Crop(root, 256, 128)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if crop.HeadOffset() != 256 {
		t.Errorf("HeadOffset = %d, want 256", crop.HeadOffset())
	}
	if crop.Size() != 128 {
		t.Errorf("Size = %d, want 128", crop.Size())
	}
	if OwnerOf(crop) != root {
		t.Errorf("OwnerOf(crop) = %v, want root", OwnerOf(crop))
	}
	if OwnerOf(root) != root {
		t.Errorf("OwnerOf(root) should be root itself")
	}
}

func TestCropOfCropChainsToRoot(t *testing.T) {
	root := &Region{size: 1024}
	a := &Allocator{}

	mid, err := a.Crop(root, 100, 500)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	inner, err := a.Crop(mid, 50, 100)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if inner.HeadOffset() != 150 {
		t.Errorf("HeadOffset = %d, want 150 (100+50)", inner.HeadOffset())
	}
	if OwnerOf(inner) != root {
		t.Errorf("OwnerOf(inner) should chain to root, got %v", OwnerOf(inner))
	}
}

func TestCropRejectsOutOfBounds(t *testing.T) {
	root := &Region{size: 64}
	a := &Allocator{}
	if _, err := a.Crop(root, 32, 64); err == nil {
		t.Fatal("expected error cropping past the end of the owning region")
	}
}

func TestDestroyCropDetachesOwner(t *testing.T) {
	root := &Region{size: 64}
	a := &Allocator{}
	crop, err := a.Crop(root, 0, 32)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if err := a.DestroyCrop(crop); err != nil {
		t.Fatalf("DestroyCrop: %v", err)
	}
	if crop.owner != nil {
		t.Error("DestroyCrop should clear owner")
	}
}

func TestDestroyCropRejectsRootAllocation(t *testing.T) {
	a := &Allocator{}
	root := &Region{size: 64}
	if err := a.DestroyCrop(root); err == nil {
		t.Fatal("expected error calling DestroyCrop on a root allocation")
	}
}

func TestReleaseRejectsCropView(t *testing.T) {
	root := &Region{size: 64}
	a := &Allocator{freeList: map[requestKey][]*Region{}}
	crop, _ := a.Crop(root, 0, 32)
	if err := a.Release(crop); err == nil {
		t.Fatal("expected error releasing a crop view through Release")
	}
}

func TestRequestKeyMatchesOnShape(t *testing.T) {
	a := Request{Size: 1024, Usage: UsageStorage, Caching: CachingCoherent, Visibility: VisibilityDeviceOnly}
	b := a
	if keyOf(a) != keyOf(b) {
		t.Error("identical requests should produce identical keys")
	}
	b.Size = 2048
	if keyOf(a) == keyOf(b) {
		t.Error("differing size should produce differing keys")
	}
}
