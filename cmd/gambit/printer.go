package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spetersoncode/gambit/event"
)

// printer renders run events as plain text.
type printer struct {
	w     io.Writer
	quiet bool
	err   error
}

func (p *printer) print(e event.Event) {
	switch e.Type {
	case event.RunEnd:
		if e.Agent != "" {
			p.line(e, "finished: %s", e.Message)
			return
		}
		if e.Answer != "" {
			fmt.Fprintln(p.w, e.Answer)
		} else if !p.quiet {
			fmt.Fprintf(p.w, "[%s] %s\n", e.Message, errorText(e))
		}
		if !p.quiet {
			fmt.Fprintf(p.w, "[tokens: %d in, %d out]\n", e.Usage.InputTokens, e.Usage.OutputTokens)
		}
	case event.RunError:
		if e.Agent == "" && e.Error != nil {
			p.err = e.Error
		}
		p.line(e, "error: %s", errorText(e))
	case event.StepStart:
		p.line(e, "-- %s %d --", e.StepName, e.Step)
	case event.MessageDelta:
		if !p.quiet && e.Agent == "" {
			fmt.Fprint(p.w, e.Delta)
		}
	case event.MessageEnd:
		if !p.quiet && e.Agent == "" {
			fmt.Fprintln(p.w)
		}
	case event.ToolCallStart:
		p.line(e, "call %s(%s)", e.ToolCall.Name, e.ToolCall.Arguments)
	case event.ToolCallResult:
		p.line(e, "result: %s", e.ToolResult.Content)
	case event.CodeResult:
		out := e.Output
		if e.Error != nil {
			out += "\nerror: " + e.Error.Error()
		}
		p.line(e, "observation: %s", out)
	}
}

func (p *printer) line(e event.Event, format string, args ...any) {
	if p.quiet {
		return
	}
	prefix := ""
	if e.Agent != "" {
		prefix = "[" + e.Agent + "] "
	}
	fmt.Fprintf(p.w, prefix+format+"\n", args...)
}

func errorText(e event.Event) string {
	if e.Error == nil {
		return ""
	}
	return strings.TrimSpace(e.Error.Message)
}
