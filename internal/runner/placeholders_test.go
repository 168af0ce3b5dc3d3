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

package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFillPlaceholdersSubstitutesTaskAndContext(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	out := fillPlaceholders("Do {task} for {customer}.", map[string]string{"task": "refund", "customer": "acme"}, now)
	require.Equal(t, "Do refund for acme.", out)
}

func TestFillPlaceholdersDefaultsMissingTaskToEmpty(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	out := fillPlaceholders("Task: [{task}]", nil, now)
	require.Equal(t, "Task: []", out)
}

func TestFillPlaceholdersSubstitutesTodayAndNow(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 30, 0, 0, time.UTC)
	out := fillPlaceholders("Today is {today}, now is {now}.", nil, now)
	require.Equal(t, "Today is Friday, July 31, 2026, now is Friday, July 31, 2026, 10:30:00.", out)
}
