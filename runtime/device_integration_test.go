//go:build linux

package runtime

import (
	"testing"

	"go.uber.org/zap"
)

// TestDeviceContextLifecycle exercises Acquire/NewDeviceContext/Release
// against a real Vulkan ICD. It is skipped wherever none is installed —
// device tests need a loader and ICD the way the rest of the pack's
// Vulkan backends (msl/xcrun_helper_test_darwin.go) restrict their own
// platform-specific tests by build tag rather than faking the driver.
func TestDeviceContextLifecycle(t *testing.T) {
	Acquire()
	defer Release()

	dc, err := NewDeviceContext(zap.NewNop().Sugar())
	if err != nil {
		t.Skipf("no usable Vulkan ICD available: %v", err)
	}
	defer dc.DeviceRelease()

	region, err := dc.DeviceMalloc(4096, false)
	if err != nil {
		t.Fatalf("DeviceMalloc: %v", err)
	}
	if err := dc.DeviceFree(region); err != nil {
		t.Fatalf("DeviceFree: %v", err)
	}

	if err := dc.DeviceSync(); err != nil {
		t.Fatalf("DeviceSync: %v", err)
	}
}
