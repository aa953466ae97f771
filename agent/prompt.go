package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/tool"
)

const toolCallingPrompt = `You are an expert assistant who solves tasks using tools.
To do so, you have been given access to the tools listed below.

On each turn, call exactly one tool. If your model interface has no native
tool calling, write the call as JSON after "Action:":

Action:
{"name": "tool_name", "arguments": {"param": "value"}}

The result of the call is returned to you as an observation. You can use it
as input for the next call. When you have the answer, call the
{{.FinalAnswer}} tool with it.

Available tools:
{{range .Tools}}- {{.Name}}: {{.Description}}
    Takes inputs: {{.Inputs}}
    Returns an output of type: {{.Output}}
{{end}}
Rules:
1. Always call a tool; a response without a tool call is not an answer.
2. Always use the right arguments for the tools. Never use variable names as arguments, use the values.
3. Do not call a tool again with the exact same arguments.
{{if .Instructions}}
{{.Instructions}}
{{end}}`

const codePrompt = `You are an expert assistant who solves tasks by writing code.
On each turn, first explain your reasoning in a short "Thought:" paragraph,
then write Python-style code in a fenced block:

` + "```py" + `
result = some_tool(arg="value")
print(result)
` + "```" + `

The code runs in a restricted Starlark interpreter. Printed output and the
value of the last expression are returned to you as an observation.
Variables you define persist between turns. When you have the answer, call
{{.FinalAnswer}}(answer) in your code.

You can call these functions:
{{range .Tools}}- {{.Name}}({{.Signature}}) -> {{.Output}}: {{.Description}}
{{end}}- {{.FinalAnswer}}(answer): ends the task with the given answer.

You can import these modules: {{join .Imports ", "}}.

Rules:
1. Always write a code block; a response without code is not an answer.
2. Use only the functions and modules listed above.
3. Do not name new variables with the same name as a function.
4. Do not end your turn with "Observation:"; it is written for you.
{{if .Instructions}}
{{.Instructions}}
{{end}}`

const managedTaskPrompt = `You are a helpful agent named '{{.Name}}'.
You have been submitted this task by your manager.
---
Task:
{{.Task}}
---
Solve the task fully and give your manager as much relevant detail as you can.
Your answer is all your manager will see, so put everything in your final answer.`

const planningPrompt = `Before acting, write a short plan for the task.
List the facts you already know, the facts you still need, and then the
numbered steps you will take. Do not call any tool yet.`

const replanPrompt = `Review the progress so far. Update the facts you have learned and
write a revised numbered plan for the remaining steps. Do not call any tool yet.`

var funcs = template.FuncMap{"join": strings.Join}

var (
	toolCallingTmpl = template.Must(template.New("tool_calling").Funcs(funcs).Parse(toolCallingPrompt))
	codeTmpl        = template.Must(template.New("code").Funcs(funcs).Parse(codePrompt))
	managedTaskTmpl = template.Must(template.New("managed_task").Parse(managedTaskPrompt))
)

type promptTool struct {
	Name        string
	Description string
	Inputs      string
	Signature   string
	Output      string
}

type promptData struct {
	Tools        []promptTool
	FinalAnswer  string
	Imports      []string
	Instructions string
}

// systemPrompt renders the system prompt for the run's mode.
func systemPrompt(registry *tool.Registry, opts *Options) (string, error) {
	data := promptData{
		FinalAnswer:  tool.FinalAnswerName,
		Imports:      opts.AllowedImports,
		Instructions: opts.Instructions,
	}
	for _, t := range registry.Describe() {
		if opts.Mode == resolve.ModeCode && t.Name == tool.FinalAnswerName {
			continue
		}
		data.Tools = append(data.Tools, describeTool(t))
	}

	tmpl := toolCallingTmpl
	if opts.Mode == resolve.ModeCode {
		tmpl = codeTmpl
	}
	if opts.SystemPrompt != "" {
		custom, err := template.New("custom").Funcs(funcs).Parse(opts.SystemPrompt)
		if err != nil {
			return "", fmt.Errorf("parse system prompt: %w", err)
		}
		tmpl = custom
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func describeTool(t ai.Tool) promptTool {
	inputs := "{}"
	if len(t.Parameters) > 0 {
		if props := properties(t.Parameters); len(props) > 0 {
			inputs = string(props)
		}
	}
	output := t.Output
	if output == "" {
		output = "any"
	}
	return promptTool{
		Name:        t.Name,
		Description: t.Description,
		Inputs:      inputs,
		Signature:   strings.Join(tool.ParameterNames(t.Parameters), ", "),
		Output:      output,
	}
}

// properties extracts the properties object of a parameter schema.
func properties(schema json.RawMessage) json.RawMessage {
	var s struct {
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return nil
	}
	return s.Properties
}

func managedTask(name, task string) string {
	var sb strings.Builder
	if err := managedTaskTmpl.Execute(&sb, struct{ Name, Task string }{name, task}); err != nil {
		return task
	}
	return sb.String()
}
