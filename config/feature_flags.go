package config

import (
	"sort"
	"sync"
)

// FeaturesConfig holds the environment switches for optional features.
type FeaturesConfig struct {
	Tasks   bool `env:"FEATURE_TASKS, default=true"`
	Council bool `env:"FEATURE_COUNCIL, default=true"`
	Journal bool `env:"FEATURE_JOURNAL, default=true"`
}

// Predefined feature flag names.
const (
	FeatureTasks   = "tasks"
	FeatureCouncil = "council"
	FeatureJournal = "journal"
)

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// FeatureFlags is a runtime view of the feature switches. Flags can be
// flipped while the process runs.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// NewFeatureFlags builds the flag set from configuration.
func NewFeatureFlags(cfg FeaturesConfig) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}

	ff.features[FeatureTasks] = &Feature{
		Name:        FeatureTasks,
		Description: "Daily tasks and task XP",
		Enabled:     cfg.Tasks,
	}
	ff.features[FeatureCouncil] = &Feature{
		Name:        FeatureCouncil,
		Description: "Once-a-day council of mentors",
		Enabled:     cfg.Council,
	}
	ff.features[FeatureJournal] = &Feature{
		Name:        FeatureJournal,
		Description: "Journal of feedback, verdicts and insights",
		Enabled:     cfg.Journal,
	}

	return ff
}

// AllEnabled returns flags with every feature on.
func AllEnabled() *FeatureFlags {
	return NewFeatureFlags(FeaturesConfig{Tasks: true, Council: true, Journal: true})
}

// IsEnabled checks if a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// SetEnabled flips a feature.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetEnabled(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetEnabled(featureName, false)
}

// GetAllFeatures returns a copy of all features sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, v := range ff.features {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
