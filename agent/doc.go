// Package agent implements the conversation turn engine of the coding
// agent: a state machine that issues generation requests, executes the tool
// calls the model asks for, and decides each turn whether to continue,
// terminate, or fail.
//
// The engine uses the llmwire package's Client.Complete() method directly,
// implementing its own turn loop to interleave tool execution with output
// truncation, loop detection, and event delivery.
//
// # Architecture
//
//   - Engine: The turn state machine. One engine per conversation; engines
//     share no mutable state and may run concurrently.
//   - Coordinator: Executes requested function calls and keeps history
//     consistent (every call paired with exactly one response).
//   - History: The owned, append-only conversation log with copy-on-read
//     snapshots.
//   - Toolset: The consumed tool capability. Registry is an in-process
//     implementation.
//   - Credentials: The consumed key-rotation capability. Rate limits rotate
//     keys; exhaustion is its own terminal condition.
//   - Emitter: Typed event stream for host application integration. Every
//     submission ends with exactly one terminal event: Completed, Failed,
//     or CredentialsExhausted.
//
// # Quick Start
//
//	client := llmwire.NewClient(llmwire.WithAdapter(llmwire.NewGoogleAdapter("")))
//	creds := agent.NewStaticCredentials("gemini-2.5-flash", apiKey)
//	tools := agent.NewRegistry()
//	engine := agent.NewEngine(client, creds, tools, nil)
//	defer engine.Close()
//
//	go func() {
//	    for event := range engine.Events() {
//	        fmt.Printf("[%s] %s\n", event.Kind, event.Message)
//	    }
//	}()
//
//	if err := engine.Submit(ctx, "Create a hello.py file"); err != nil {
//	    log.Fatal(err)
//	}
package agent
