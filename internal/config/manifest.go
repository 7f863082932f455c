package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/job"
	"simdispatch/internal/worker/factory"
)

// Manifest is the declarative description of one run: the worker pool, the
// jobs to execute, and run-wide settings.
type Manifest struct {
	DefaultTimeout time.Duration  `yaml:"defaultTimeout"` // per-job budget unless the job overrides it
	Callback       *job.Callback  `yaml:"callback"`       // optional webhook destination for run events
	Workers        []factory.Spec `yaml:"workers"`
	Jobs           []job.Job      `yaml:"jobs"`
}

// LoadManifest reads and validates a run manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Config("manifest", fmt.Sprintf("cannot read manifest: %v", err))
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, apperrors.Config("manifest", fmt.Sprintf("invalid manifest YAML: %v", err))
	}

	if len(m.Workers) == 0 {
		return nil, apperrors.Config("manifest.workers", "at least one worker is required")
	}
	if len(m.Jobs) == 0 {
		return nil, apperrors.Config("manifest.jobs", "at least one job is required")
	}
	for i, j := range m.Jobs {
		if err := j.Validate(); err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i, j.ID, err)
		}
	}
	return &m, nil
}
