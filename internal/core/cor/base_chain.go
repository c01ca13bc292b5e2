// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor implements a small Chain of Responsibility framework. This file
// defines BaseChain, the Command that runs other commands.
//
// Logic Flow:
//  1. The chain opens a span for itself and one child span per command.
//  2. Before each command it checks for recorded errors. Unless
//     ContinueOnFailure was set, the first error ends the chain.
//  3. A command that is not executable is skipped; its input passes through.
//  4. After a fail-soft command fails, its error is moved to the warnings and
//     Degrade, when implemented, publishes a sentinel output.
//  5. Whatever the command left in CtxOut is moved to CtxIn for the next one.
package cor

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BaseChain runs its commands strictly in order over one Context. A chain is
// itself a Command, so chains nest.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool      // Keep running after a fail-fast command records an error.
	commands          []Command // Commands in execution order.
}

// NewBaseChain creates an empty fail-fast chain.
//
// Inputs:
//   - name: The chain name, used for its span and error key.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure makes the chain run every command even after an error.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends command to the chain.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// Commands returns the names of the chained commands in execution order.
func (c *BaseChain) Commands() []string {
	out := make([]string, 0, len(c.commands))
	for _, cmd := range c.commands {
		out = append(out, cmd.GetName())
	}
	return out
}

// IsExecutable only needs a Go context; the chain input may be set later by
// its first command.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil
}

// Execute runs every command in turn. After each command the value it left in
// CtxOut becomes the CtxIn of the next one; a command that leaves nothing in
// CtxOut (including one that was skipped as not executable) passes its input
// through unchanged. When the chain returns, its final output sits in CtxIn.
func (c *BaseChain) Execute(chCtx Context) {
	// Remember the caller context; it is restored on return.
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()
	defer chCtx.SetContext(parentCtx)

	for _, command := range c.commands {
		// One child span per command, tagged with its failure policy.
		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		commandSpan.SetAttributes(attribute.String("failure_policy", command.GetFailurePolicy().String()))

		// Stop at the first fatal error.
		if chCtx.HasErrors() && !c.continueOnFailure {
			commandSpan.SetStatus(codes.Error, "previous error on chain; skipping execution")
			commandSpan.End()
			break
		}

		// The command sees its own span through the context.
		if command.IsExecutable(chCtx) {
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			slog.DebugContext(commandContext, "command not executable; passing input through", "command", command.GetName())
			commandSpan.SetAttributes(attribute.Bool("skipped", true))
		}

		// A fail-soft error becomes a warning and the sentinel output is published.
		if err, failed := chCtx.GetErrors()[command.GetName()]; failed && command.GetFailurePolicy() == FailSoftWithSentinel {
			chCtx.RemoveError(command.GetName())
			chCtx.AddWarning(command.GetName(), err)
			slog.WarnContext(commandContext, "stage degraded", "command", command.GetName(), "error", err)
			commandSpan.RecordError(err)
			if d, ok := command.(Degradable); ok {
				d.Degrade(chCtx, err)
			}
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during or after command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		// Pipe the output into the next command.
		if outputValue := chCtx.Get(CtxOut); outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}
