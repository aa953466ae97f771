// Package mcp bridges MCP (Model Context Protocol) servers and gambit tool
// registries in both directions.
//
//   - [RemoteRegistry] connects to an MCP server over stdio, SSE or an
//     in-process transport and exposes its tools as [tool.Registration]s,
//     so an agent can call them like local tools.
//   - [NewServer] and [ServeStdio] expose a [tool.Registry] as an MCP server.
//
// # Consuming MCP Servers
//
//	remote, err := mcp.NewRemoteRegistry(ctx, "./my-mcp-server", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer remote.Close()
//
//	registry := tool.NewRegistry().Add(remote.Registrations()...)
//	a := agent.New(provider, registry)
//
// A remote call that fails, or whose result is flagged as an error, fails
// the tool call. The agent records it as a tool error and the run goes on.
//
// # Exposing Tools
//
//	registry := tool.NewRegistry().Add(
//	    tool.Func("weather", "Get weather", weatherHandler),
//	)
//	if err := mcp.ServeStdio(registry); err != nil {
//	    log.Fatal(err)
//	}
package mcp
