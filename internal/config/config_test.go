package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
database_url: postgres://u:p@localhost:5432/marketscan
api_port: 9090
vendor_api_key: db-test-key
job_file: jobs.yaml
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPort != 9090 || cfg.VendorAPIKey != "db-test-key" || cfg.JobFile != "jobs.yaml" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadJobsSingle(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "job.yaml", `
name: es-daily
api: databento
dataset: GLBX.MDP3
schema: ohlcv-1d
symbols: [ES.c.0]
stype_in: continuous
start_date: "2024-01-02"
end_date: "2024-01-04"
`)
	jobs, err := LoadJobs(path)
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "es-daily" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestLoadJobsList(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "jobs.yaml", `
jobs:
  - name: es-daily
    api: databento
    dataset: GLBX.MDP3
    schema: ohlcv-1d
    symbols: [ES.c.0]
    stype_in: continuous
    start_date: "2024-01-02"
    end_date: "2024-01-04"
  - name: es-defs
    api: databento
    dataset: GLBX.MDP3
    schema: definitions
    symbols: [ES.FUT]
    stype_in: parent
    start_date: "2024-01-02"
    end_date: "2024-01-03"
`)
	jobs, err := LoadJobs(path)
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[1].Name != "es-defs" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestLoadJobsRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "job.yaml", `
name: es-daily
api: databento
dataset: GLBX.MDP3
schema: ohlcv-1d
symbols: [ES.c.0]
stype_in: continuous
start_date: "2024-01-02"
end_date: "2024-01-04"
chunk_interval: 3
`)
	if _, err := LoadJobs(path); err == nil {
		t.Fatal("unknown job key accepted")
	}
}

func TestLoadJobsRejectsInvalidJob(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "job.yaml", `
name: es-daily
api: databento
dataset: GLBX.MDP3
schema: ohlcv-1d
symbols: [ES.c.0]
stype_in: continuous
start_date: "2024-01-04"
end_date: "2024-01-04"
`)
	if _, err := LoadJobs(path); err == nil {
		t.Fatal("start == end accepted")
	}
}
