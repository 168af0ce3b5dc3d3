// Copyright 2025 Kadir Pekel
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

package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kadirpekel/quackgate/internal/connector/openaicompat"
)

// LoadDotenv loads a ".env" file from the working directory if present.
// A missing file is not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

// LegacySpecFromEnv builds the single-connection fallback used when no
// "llms" map is configured, reading API_ENDPOINT/API_KEY/PROVIDER/MODEL
// and returning ok=false if API_ENDPOINT is unset.
func LegacySpecFromEnv() (name string, spec ModelConnectionSpec, ok bool) {
	endpoint, hasEndpoint := os.LookupEnv("API_ENDPOINT")
	if !hasEndpoint || endpoint == "" {
		return "", ModelConnectionSpec{}, false
	}
	spec = openaicompat.Spec{
		APIEndpoint: endpoint,
		APIKey:      os.Getenv("API_KEY"),
		Provider:    os.Getenv("PROVIDER"),
		Model:       os.Getenv("MODEL"),
	}
	if parseBoolEnv(os.Getenv("SYSTEM_PROMPT_LAST")) {
		spec.Config = map[string]any{"system_prompt_last": true}
	}
	return "default", spec, true
}

// DefaultModelFromEnv returns DEFAULT_MODEL, or "" if unset.
func DefaultModelFromEnv() string {
	return os.Getenv("DEFAULT_MODEL")
}

func parseBoolEnv(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
