package track

import "github.com/sightline-data/facetrack/internal/config"

// ManagerConfigFromTuning builds a ManagerConfig from a TuningConfig,
// falling back to the tuning defaults for unset fields. The result still
// goes through NewManager/UpdateConfig validation.
func ManagerConfigFromTuning(tc *config.TuningConfig) ManagerConfig {
	if tc == nil {
		return DefaultManagerConfig()
	}
	return ManagerConfig{
		IoUThreshold:           tc.GetIoUThreshold(),
		MinHits:                tc.GetMinHits(),
		MaxAge:                 tc.GetMaxAge(),
		MaxTracks:              tc.GetMaxTracks(),
		Matcher:                MatcherKind(tc.GetMatcher()),
		VelocitySmoothingAlpha: tc.GetVelocitySmoothingAlpha(),
		CoastUnmatched:         tc.GetCoastUnmatched(),
	}
}
