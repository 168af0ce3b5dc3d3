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

package modelprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quackgate/internal/connector/openaicompat"
)

func TestLoadMergesModelsAndLaterSpecOverrides(t *testing.T) {
	specs := []NamedSpec{
		{Name: "first", Spec: openaicompat.Spec{
			APIEndpoint: "https://api.openai.com/v1",
			APIKey:      "k1",
			Provider:    "OpenAI",
			Model:       "gpt-4o",
		}},
		{Name: "second", Spec: openaicompat.Spec{
			APIEndpoint: "https://api.openai.com/v1",
			APIKey:      "k2",
			Provider:    "OpenAI",
			Model:       "gpt-4o",
		}},
	}

	reg, err := Load(context.Background(), specs)
	require.NoError(t, err)
	require.Equal(t, []string{"gpt-4o"}, reg.Models())
	require.Equal(t, "second", reg.models["gpt-4o"])
}

func TestGetLLMUnknownModel(t *testing.T) {
	reg, err := Load(context.Background(), nil)
	require.NoError(t, err)
	_, err = reg.GetLLM("nonexistent")
	require.Error(t, err)
	var unknown *UnknownModelError
	require.ErrorAs(t, err, &unknown)
}

func TestLoadFailsOnUnsupportedProvider(t *testing.T) {
	specs := []NamedSpec{{Name: "bad", Spec: openaicompat.Spec{Provider: "not-a-real-provider"}}}
	_, err := Load(context.Background(), specs)
	require.Error(t, err)
}
