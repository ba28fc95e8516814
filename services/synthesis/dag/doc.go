// Copyright (C) 2025 Wildtrace Labs (dev@wildtrace.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dag schedules the synthesis stage graph.
//
// The executor runs a fixed set of task definitions against one
// PipelineRun, respecting dependency edges and running independent
// branches concurrently. It enforces per-stage timeouts, a run-level
// backstop timeout, and a single-retry policy for transient invocation
// errors and schema validation failures. No stage error escapes as an
// exception: every run resolves into a terminal state that the record
// assembler can always turn into a record.
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
//
// # Example
//
//	graph, err := dag.NewBuilder("field-synthesis").
//	    AddTasks(pipeline.Catalog()).
//	    Build()
//
//	exec, err := dag.NewExecutor(graph, inv, registry, buildRequest,
//	    dag.DefaultConfig(), logger, reporter)
//	run, err := exec.Run(ctx, sessionID, &dag.Context{Packet: packet})
package dag
