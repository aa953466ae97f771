// Package resolve turns one model response into exactly one action.
//
// In tool-calling mode the resolver prefers native tool calls and falls back
// to calls written into the text, either after an "Action:" marker or inside
// <tool_call> tags, as a JSON object with "name" and "arguments" keys
// ("tool_name" and "tool_arguments" are accepted too). The named tool must
// exist and the arguments must satisfy its schema.
//
// In code mode the resolver extracts the first fenced block tagged py,
// python or starlark, or an untagged one.
//
// When several candidates are present the first well-formed one wins and the
// rest are reported in Resolution.Ignored. Every failure is a recoverable
// *gambit.ExecutionError that the agent records as an observation.
package resolve
