package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"marketscan/internal/models"
)

// Config is the process-wide configuration. Loaded once at startup from a
// YAML file; env-var overrides are resolved in main before the core sees it.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	APIPort     int    `yaml:"api_port"`

	VendorAPIKey     string  `yaml:"vendor_api_key"`
	VendorBaseURL    string  `yaml:"vendor_base_url"`
	VendorRateLimit  float64 `yaml:"vendor_rate_limit"`
	VendorMaxRetries int     `yaml:"vendor_max_retries"`

	MappingFile string `yaml:"mapping_file"`
	JobFile     string `yaml:"job_file"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// jobFile is the on-disk shape of a job document: either a single job or a
// jobs list.
type jobFile struct {
	Jobs []models.Job `yaml:"jobs"`
}

// LoadJobs reads one or more job documents from a YAML file. Unknown keys are
// rejected so a typo'd option fails the run instead of silently defaulting.
func LoadJobs(path string) ([]models.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file jobFile
	if err := dec.Decode(&file); err == nil && len(file.Jobs) > 0 {
		return validateJobs(path, file.Jobs)
	}

	dec = yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var job models.Job
	if err := dec.Decode(&job); err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}
	return validateJobs(path, []models.Job{job})
}

func validateJobs(path string, jobs []models.Job) ([]models.Job, error) {
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, fmt.Errorf("job file %s: %w", path, err)
		}
	}
	return jobs, nil
}
