// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// workspaceConfig is the on-disk forge.yaml a workspace root carries:
// parallelism, default visibility, and the package search path root. It is
// the concrete shape of the "default-visibility", "package-locator" build
// variables before they become SetExternalInput calls.
type workspaceConfig struct {
	PackageLocator    string `yaml:"package_locator" validate:"required"`
	DefaultVisibility string `yaml:"default_visibility" validate:"required,oneof=public private"`
	Threads           int    `yaml:"threads" validate:"gte=0"`
	ActionConcurrency int64  `yaml:"action_concurrency" validate:"gte=0"`
	Batch             bool   `yaml:"batch"`
}

func defaultConfig() workspaceConfig {
	return workspaceConfig{
		PackageLocator:    ".",
		DefaultVisibility: "public",
		Threads:           0,
		ActionConcurrency: 0,
		Batch:             false,
	}
}

// loadConfig reads and validates path, falling back to defaultConfig if
// path does not exist: a workspace with no forge.yaml is still buildable.
func loadConfig(path string) (workspaceConfig, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}
