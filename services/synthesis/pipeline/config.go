// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wildtrace/wildtrace/services/synthesis/dag"
)

// Config holds the full pipeline configuration: executor policy plus the
// stage catalog. The stage list is configuration, not contract; deployments
// may override stages, weights, and instructions without code changes.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Executor contains scheduling, timeout, and retry settings.
	Executor dag.Config `json:"executor" yaml:"executor"`

	// Stages is the stage catalog. Empty means the built-in Catalog().
	Stages []dag.TaskDefinition `json:"stages,omitempty" yaml:"stages,omitempty"`

	// RequestsPerMinute rate-limits model invocations. Zero disables
	// rate limiting.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
}

// DefaultPipelineConfig returns the default configuration: the built-in
// stage catalog, one retry, 75s stage timeout, two minute run backstop.
func DefaultPipelineConfig() Config {
	return Config{
		Executor: dag.DefaultConfig(),
		Stages:   Catalog(),
	}
}

// LoadConfig loads configuration with priority: env > file > defaults.
//
// Inputs:
//
//	configPath - Path to a YAML config file. Optional, may be empty; a
//	             missing file silently yields defaults.
//
// Outputs:
//
//	Config - Merged configuration with a valid stage catalog.
//	error - Non-nil if the file exists but is invalid, or the resulting
//	        stage catalog does not build.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultPipelineConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&config)

	if len(config.Stages) == 0 {
		config.Stages = Catalog()
	}

	// Building the graph validates dependencies, weights, and acyclicity.
	if _, err := dag.NewBuilder("synthesis").AddTasks(config.Stages).Build(); err != nil {
		return config, fmt.Errorf("invalid stage catalog: %w", err)
	}

	return config, nil
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func loadConfigFromEnv(config *Config) {
	if v := os.Getenv("WILDTRACE_STAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Executor.StageTimeout = d
		}
	}
	if v := os.Getenv("WILDTRACE_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Executor.RunTimeout = d
		}
	}
	if v := os.Getenv("WILDTRACE_RETRY_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Executor.RetryLimit = i
		}
	}
	if v := os.Getenv("WILDTRACE_MAX_CONCURRENT"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Executor.MaxConcurrent = i
		}
	}
	if v := os.Getenv("WILDTRACE_REQUESTS_PER_MINUTE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.RequestsPerMinute = i
		}
	}
}
