package config

import (
	"os"
	"runtime"
	"time"

	"github.com/guigolab/bammatrix/genome"
)

// Config holds the parameters of a matrix extraction run.
type Config struct {
	Cpu           int
	Resolution    int
	TmpDir        string
	FilterExclude int
	Half          bool
	// Normalizations lists the modes written in a single pass.
	Normalizations []string
	PollInterval   time.Duration
	// ScanTimeout bounds a single chunk scan; zero disables it.
	ScanTimeout time.Duration
	Progress    bool
}

const DefaultPollInterval = 2 * time.Second

func NewConfig(cpu, resolution int, tmpDir string, filterExclude int, half bool) *Config {
	return &Config{
		Cpu:            cpu,
		Resolution:     resolution,
		TmpDir:         tmpDir,
		FilterExclude:  filterExclude,
		Half:           half,
		Normalizations: []string{"raw"},
		PollInterval:   DefaultPollInterval,
	}
}

// Validate checks the fields and fills in defaults for the unset ones.
func (c *Config) Validate() error {
	if c.Resolution <= 0 {
		return &genome.ConfigError{Field: "resolution", Value: c.Resolution, Reason: "must be positive"}
	}
	if c.Cpu < 1 {
		c.Cpu = runtime.NumCPU()
	}
	if c.FilterExclude < 0 {
		return &genome.ConfigError{Field: "filter-exclude", Value: c.FilterExclude, Reason: "must not be negative"}
	}
	if c.ScanTimeout < 0 {
		return &genome.ConfigError{Field: "scan-timeout", Value: c.ScanTimeout, Reason: "must not be negative"}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.TmpDir == "" {
		c.TmpDir = os.TempDir()
	}
	if len(c.Normalizations) == 0 {
		c.Normalizations = []string{"raw"}
	}
	return nil
}
