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
	"strings"
	"time"
)

// fillPlaceholders substitutes "{task}", any "{<context_name>}" key
// present in kwargs, and the well-known "{today}"/"{now}" placeholders
// into template. A missing task becomes an empty string; any other
// "{name}" placeholder whose key is absent from kwargs is left in place.
func fillPlaceholders(template string, kwargs map[string]string, now time.Time) string {
	out := template
	if strings.Contains(out, "{task}") {
		out = strings.ReplaceAll(out, "{task}", kwargs["task"])
	}
	for key, value := range kwargs {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	if strings.Contains(out, "{today}") {
		out = strings.ReplaceAll(out, "{today}", now.Format("Monday, January 2, 2006"))
	}
	if strings.Contains(out, "{now}") {
		out = strings.ReplaceAll(out, "{now}", now.Format("Monday, January 2, 2006, 15:04:05"))
	}
	return out
}
