// Package sandbox runs code actions in a restricted Starlark interpreter.
//
// Code may only import modules on the allow-list, using either Python-style
// import statements or Starlark load statements. Both are checked before any
// statement runs. Registered tools are exposed as builtins, and a
// final_answer builtin ends the execution with a terminal value:
//
//	sb := sandbox.New(sandbox.WithTools(sandbox.FromRegistry(registry)...))
//	res := sb.Execute(ctx, "temp = get_weather('Paris')\nfinal_answer(temp)")
//	if res.Err != nil {
//	    // res.Err.Kind is a recoverable gambit.ErrorKind
//	}
//
// Globals assigned by a successful execution persist into the next one, and
// a failed execution leaves them untouched. Each execution sees copies of the
// persisted lists, dicts and sets. A function defined in an earlier execution
// keeps reading the globals as they were when that execution ended, and it
// cannot mutate them:
//
//	x = 1
//	def f(): return x
//	---
//	x = 2
//	f()  # 1
package sandbox
