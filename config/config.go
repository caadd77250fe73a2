/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the declarative settings of a bunrest server from
// YAML, an optional .env file and BUNREST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/tomoncle/bunrest/database"
	"github.com/tomoncle/bunrest/utils"
	"gopkg.in/yaml.v3"
)

const DefaultVersion = "v1"

// Settings is the root of the configuration tree.
type Settings struct {
	Debug     bool                        `yaml:"debug"`
	Listen    string                      `yaml:"listen"`
	BasePath  string                      `yaml:"base_path"`
	LogLevel  string                      `yaml:"log_level"`
	LogFormat string                      `yaml:"log_format"`
	LogDir    string                      `yaml:"log_dir"`
	JWTSecret string                      `yaml:"jwt_secret"`
	Database  database.Config             `yaml:"database"`
	Versions  map[string]*VersionSettings `yaml:"versions"`
}

// Default returns settings exposing every registered model under "v1".
func Default() *Settings {
	s := &Settings{Database: database.Config{ConnectionConfig: *database.DefaultConnectionConfig()}}
	if err := s.normalize(); err != nil {
		panic(err)
	}
	return s
}

// Load reads settings from path. A missing file yields the defaults. A
// .env file in the working directory is loaded first when present; it never
// overrides variables already set.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if path == "" {
		path = utils.EnvDefaultString("BUNREST_CONFIG", "configs/bunrest.yaml")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML settings and applies environment overrides.
func Parse(data []byte) (*Settings, error) {
	s := &Settings{Database: database.Config{ConnectionConfig: *database.DefaultConnectionConfig()}}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	s.overrideFromEnv()
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) overrideFromEnv() {
	s.Debug = utils.EnvDefaultBool("BUNREST_DEBUG", s.Debug)
	s.Listen = utils.EnvDefaultString("BUNREST_LISTEN", s.Listen)
	s.BasePath = utils.EnvDefaultString("BUNREST_BASE_PATH", s.BasePath)
	s.LogLevel = utils.EnvDefaultString("BUNREST_LOG_LEVEL", s.LogLevel)
	s.LogFormat = utils.EnvDefaultString("BUNREST_LOG_FORMAT", s.LogFormat)
	s.LogDir = utils.EnvDefaultString("BUNREST_LOG_DIR", s.LogDir)
	s.JWTSecret = utils.EnvDefaultString("BUNREST_JWT_SECRET", s.JWTSecret)
}

func (s *Settings) normalize() error {
	if s.Listen == "" {
		s.Listen = ":8000"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "text"
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", s.LogFormat)
	}
	if len(s.Versions) == 0 {
		s.Versions = map[string]*VersionSettings{DefaultVersion: {}}
	}
	for name, version := range s.Versions {
		if version == nil {
			version = &VersionSettings{}
			s.Versions[name] = version
		}
		if version.Name == "" {
			version.Name = name
		}
		if version.VerboseName == "" {
			version.VerboseName = version.Name
		}
		for label, app := range version.Apps {
			if app == nil {
				continue
			}
			for model, m := range app.Models {
				if m == nil {
					continue
				}
				if err := m.validate(); err != nil {
					return fmt.Errorf("versions.%s.apps.%s.models.%s: %w", name, label, model, err)
				}
			}
		}
	}
	return nil
}

func (m *ModelSettings) validate() error {
	switch m.ListMode {
	case "", ListModeIDs, ListModeObjects:
	default:
		return fmt.Errorf("list_mode must be %s or %s, got %q", ListModeIDs, ListModeObjects, m.ListMode)
	}
	if m.DefaultLimit != nil && *m.DefaultLimit < 0 {
		return fmt.Errorf("default_limit must not be negative")
	}
	if m.MaxLimit != nil && *m.MaxLimit < 0 {
		return fmt.Errorf("max_limit must not be negative")
	}
	return nil
}

// VersionNames returns the configured version keys in sorted order.
func (s *Settings) VersionNames() []string {
	names := make([]string, 0, len(s.Versions))
	for name := range s.Versions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
