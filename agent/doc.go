// Package agent runs a bounded reason-and-act loop over a model and a tool
// registry.
//
// Each run seeds a memory with the system prompt and the task, then repeats
// action steps until the model gives a final answer or the budget runs out:
//
//	build context -> invoke model -> resolve action -> execute -> record
//
// A step records exactly one memory.ActionStep. Parse, validation, security,
// runtime, timeout and tool failures are recorded as the step's observation
// so the model can correct itself. Model failures that survive retries, and
// cancellation, end the run.
//
// # Modes
//
// In tool-calling mode (the default) the model calls one tool per step,
// natively or as JSON in its text. In code mode the model writes a code
// block that runs in a restricted Starlark sandbox with the tools bound as
// functions:
//
//	a := agent.New(provider, registry, agent.WithMode(resolve.ModeCode))
//	result, err := a.Run(ctx, "What is 2+2?", agent.WithMaxSteps(5))
//	if err != nil {
//	    return err // model failure or cancellation
//	}
//	switch result.Outcome {
//	case agent.OutcomeFinished:
//	    fmt.Println(result.Text())
//	case agent.OutcomeBudgetExhausted:
//	    fmt.Println("ran out of budget:", result.Error.Message)
//	}
//
// # Streaming Events
//
// Use RunStream to receive events as the run executes. The channel closes
// after the terminal event:
//
//	for e := range a.RunStream(ctx, task) {
//	    switch e.Type {
//	    case event.MessageDelta:
//	        fmt.Print(e.Delta)
//	    case event.RunEnd, event.RunError:
//	        if e.IsTerminal() {
//	            fmt.Println("\n", e.Message)
//	        }
//	    }
//	}
//
// # Managed Agents
//
// NewTool exposes an agent as a tool taking {"task": string}. The nested run
// has its own memory and budget, and its events are forwarded into the
// parent's stream tagged with the agent name. A nested run that does not
// finish is a tool error in the parent.
package agent
