package intrin

import "os"

// RoundingShiftProbeDepth bounds how many levels of Add the rounding-shift
// recognizer will descend through while proving that removing an explicit
// round-constant addition cannot change overflow behavior in a modular
// type. bits/2 - 1 is a heuristic depth, not a minimal or
// proven-sufficient one; tune it freely if a deeper probe pays for itself.
func RoundingShiftProbeDepth(bits uint8) int {
	return int(bits)/2 - 1
}

// Options configures a recognizer run.
type Options struct {
	// EnableRakeRules mirrors HL_ENABLE_RAKE_RULES: opts into
	// an additional bank of synthesized rewrite rules. No rake rules
	// exist yet beyond the core families, so the flag is read and
	// threaded through but currently changes no observable behavior; it
	// exists so a future rule bank has somewhere to plug in without
	// changing the Options shape.
	EnableRakeRules bool

	// DisableIntrinsics mirrors HL_DISABLE_INTRINISICS: skip recognition
	// entirely and return the input unchanged.
	DisableIntrinsics bool
}

// OptionsFromEnv reads HL_DISABLE_INTRINISICS and HL_ENABLE_RAKE_RULES
// from the environment.
func OptionsFromEnv() Options {
	return Options{
		DisableIntrinsics: os.Getenv("HL_DISABLE_INTRINISICS") == "1",
		EnableRakeRules:   os.Getenv("HL_ENABLE_RAKE_RULES") == "1",
	}
}
