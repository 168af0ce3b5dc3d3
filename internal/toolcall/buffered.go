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

package toolcall

import (
	"regexp"
	"strings"
)

var thinkSpanPattern = regexp.MustCompile(`(?s)\s*<think>.*?</think>`)

// RemoveThoughts strips every <think>...</think> span, together with the
// whitespace just before it, from message text.
func RemoveThoughts(message string) string {
	return strings.TrimSpace(thinkSpanPattern.ReplaceAllString(message, ""))
}

// SplitInBandPayload inspects a complete (non-streamed) response body for
// an in-band "[CALL]" payload. When hasTools is true and the text
// (with <think> spans removed) contains "[CALL]", everything from the
// first "[CALL]" marker onward is cut out of the returned visible text,
// and what follows that marker is returned, trimmed, as the payload.
func SplitInBandPayload(text string, hasTools bool) (visibleText, payload string) {
	if !hasTools {
		return text, ""
	}
	nonThink := RemoveThoughts(text)
	if !strings.Contains(nonThink, "[CALL]") {
		return text, ""
	}
	parts := strings.Split(nonThink, "[CALL]")
	payload = strings.Join(parts[1:], "[CALL]")
	return strings.Replace(text, "[CALL]"+payload, "", 1), strings.TrimSpace(payload)
}
