package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate checks every scenario entry and reports all problems at once.
func (f *File) Validate() error {
	if len(f.NodeScenarios) == 0 {
		return fmt.Errorf("node_scenarios must contain at least one entry")
	}

	var errs []error
	for i := range f.NodeScenarios {
		if err := f.NodeScenarios[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("node_scenarios[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single, defaulted scenario entry.
func (e *ScenarioEntry) Validate() error {
	var errs []error

	if e.CloudType == "" {
		errs = append(errs, fmt.Errorf("cloud_type is required"))
	} else if _, ok := ParseCloudType(string(e.Cloud())); !ok {
		errs = append(errs, fmt.Errorf("invalid cloud_type %q (valid: %v)", e.CloudType, getMapKeys(cloudAliases)))
	}

	if len(e.Actions) == 0 {
		errs = append(errs, fmt.Errorf("actions must not be empty"))
	}
	for _, a := range e.Actions {
		if !a.Valid() {
			errs = append(errs, fmt.Errorf("unknown action %q", a))
		}
	}

	hasNames := len(e.NodeNames()) > 0
	hasSelector := len(e.LabelSelectors()) > 0
	switch {
	case hasNames && hasSelector:
		errs = append(errs, fmt.Errorf("node_name and label_selector are mutually exclusive"))
	case !hasNames && !hasSelector:
		errs = append(errs, fmt.Errorf("one of node_name or label_selector is required"))
	}

	if e.Count() < 0 {
		errs = append(errs, fmt.Errorf("instance_count must not be negative, got %d", e.Count()))
	}
	if e.Runs < 1 {
		errs = append(errs, fmt.Errorf("runs must be at least 1, got %d", e.Runs))
	}
	if e.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %d", e.TimeoutSeconds))
	}
	if e.DurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %d", e.DurationSeconds))
	}
	if e.PollIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %d", e.PollIntervalSeconds))
	}

	return errors.Join(errs...)
}

// getMapKeys returns the sorted keys of a map for error messages.
func getMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
