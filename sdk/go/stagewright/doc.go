// Package stagewright embeds the scenario engine in Go programs: parse
// YAML test scenarios and drive them through a real browser without
// shelling out to the CLI or talking to a server.
//
// Usage:
//
//	sw, err := stagewright.New(stagewright.WithBaseURL("https://staging.example.com"))
//	if err != nil {
//		return err
//	}
//	defer sw.Close(ctx)
//
//	outcome, err := sw.Run(ctx, "scenarios/login.yaml")
//
// Interactive sessions advance one step per call, for agents and
// debuggers that want to look at the page between steps:
//
//	created, _ := sw.Start(ctx, "scenarios/login.yaml")
//	exec, _ := sw.Step(ctx, created.SessionID)
//	ended, _ := sw.End(ctx, created.SessionID)
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/ppiankov/stagewright/sdk/go/stagewright.
package stagewright
