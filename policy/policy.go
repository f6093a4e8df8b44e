// Package policy holds the kernel's tunable constants (spec's Design
// Notes (c): "policy constants, not contracts") and an optional TOML
// overlay for them. Grounded on the domain stack's
// `github.com/BurntSushi/toml` usage for a config file layered under
// env vars (SPEC_FULL.md §1-2); the defaults mirror the hardcoded
// constants in background/compress/teammate. config.Load stores the
// result in Config.Policy, but those packages read only their own
// constants, so an overlay does not change their behaviour.
package policy

import (
	"github.com/BurntSushi/toml"
)

// Policy is the full set of overridable constants. Zero values are
// never meaningful here, so LoadTOML always starts from Default() and
// overlays only the fields present in the file.
type Policy struct {
	AutoCompactThreshold     int
	TranscriptCharLimit      int
	BackgroundDefaultTimeout int
	BackgroundMaxResultChars int
	NotificationPreviewChars int
	IdlePollIntervalSeconds  int
	IdlePollTotalSeconds     int
	ShellDenylist            []string
}

// Default returns the built-in constants, matching the hardcoded values
// in background/compress/teammate/safepath.
func Default() Policy {
	return Policy{
		AutoCompactThreshold:     100_000,
		TranscriptCharLimit:      80_000,
		BackgroundDefaultTimeout: 120,
		BackgroundMaxResultChars: 50_000,
		NotificationPreviewChars: 500,
		IdlePollIntervalSeconds:  5,
		IdlePollTotalSeconds:     60,
	}
}

// LoadTOML reads path and overlays its fields onto Default(). A missing
// or unreadable file returns Default() together with the error.
func LoadTOML(path string) (Policy, error) {
	pol := Default()
	meta, err := toml.DecodeFile(path, &pol)
	if err != nil {
		return Default(), err
	}
	_ = meta
	return pol, nil
}
