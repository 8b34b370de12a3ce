package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/gogpu/tensorshade/spirv"
)

// spirvVersionFlag adapts spirv.Version to pflag.Value so `compile
// --spirv-version` can select the target SPIR-V version by its usual
// "major.minor" spelling instead of two separate integer flags.
type spirvVersionFlag struct {
	version spirv.Version
}

var _ pflag.Value = (*spirvVersionFlag)(nil)

func newSPIRVVersionFlag(def spirv.Version) *spirvVersionFlag {
	return &spirvVersionFlag{version: def}
}

func (f *spirvVersionFlag) String() string {
	return fmt.Sprintf("%d.%d", f.version.Major, f.version.Minor)
}

func (f *spirvVersionFlag) Set(s string) error {
	var major, minor uint8
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return fmt.Errorf("invalid SPIR-V version %q, want MAJOR.MINOR", s)
	}
	f.version = spirv.Version{Major: major, Minor: minor}
	return nil
}

func (f *spirvVersionFlag) Type() string { return "major.minor" }
