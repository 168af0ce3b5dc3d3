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

package openaicompat

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/quackgate/internal/chatapi"
)

// defaultCustomToolCallPrompt is injected into the system prompt when a
// connector is configured with unofficial_toolcalling, instructing a model
// without native function-calling support to emit "[CALL] {json}" instead.
const defaultCustomToolCallPrompt = `## Tool Calling Instructions

One of your operation modes is to call tools.
If you decided to call a tool, make sure the toolcall is the last thing in your output.
You can use the tools to perform actions or get information that is not available in the chat history.
You should write a short text preceeding a tool call explaining the user what you are doing, but you must never write any text after a tool call.

You have access to the following tools:
<tools>
{tools}
</tools>

You can access the tools. Use them if you think they are suited for solving the task.
If you decide to invoke any of the function(s), you MUST put it in the format of
{"name": function name, "parameters": dictionary of argument name and its value}
You SHOULD NOT include any other text in the response if you call a function.
First print "[CALL] " and then a json object specifying the tool call you want to make.
If you do not print "[CALL] ", the tool will not be called.

<example>
I will use tool ` + "`tool_name`" + ` to achieve XYZ.
[CALL] {"name": "tool_name", "parameters": {"argument1": "value1", "argument2": "value2"}}
</example>

If you do not want to call a tool, do not use "[CALL]" in your response.

<example>
The weather in berlin today is sunny.
</example>

Remember: Do not forget to prefix your toolcall with "[CALL] " if you want to use it!
`

// toolsToCustomPrompt renders one <tools> block entry per tool and fills it
// into promptTemplate's "{tools}" placeholder, matching
// tools_to_custom_prompt's layout.
func toolsToCustomPrompt(tools []chatapi.Tool, promptTemplate string) string {
	var descriptions []string
	for _, tool := range tools {
		description := strings.TrimSuffix(tool.Description, ".")
		var params strings.Builder
		for name, detail := range tool.Parameters {
			fmt.Fprintf(&params, "  - %s: %s\n", name, detail.Description)
		}
		entry := strings.TrimSpace(fmt.Sprintf("* %s: %s.\n%s\n", strings.ToLower(tool.Name), description, params.String()))
		descriptions = append(descriptions, entry)
	}
	return strings.Replace(promptTemplate, "{tools}", strings.Join(descriptions, "\n"), 1)
}
