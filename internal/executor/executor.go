// Copyright 2012 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package executor runs the shell commands an ActionExecution key
// evaluates to, bounding how many run concurrently. It is grounded on
// ninja's Subprocess/SubprocessSet (subprocess.go, subprocess_posix.go):
// the same "spawn a shell, capture combined output, report an exit status"
// shape, but driven by the generic evaluator's worker pool instead of a
// bespoke Plan/Builder, and bounded by a golang.org/x/sync/semaphore weight
// instead of a hand-polled running/finished slice pair.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// ExitStatus mirrors ninja's ExitStatus: a process either ran to
// completion with a code, or never started.
type ExitStatus int

const (
	StatusSuccess ExitStatus = iota
	StatusFailure
	StatusInterrupted
)

// Result is one completed command's outcome.
type Result struct {
	Command  string
	Status   ExitStatus
	ExitCode int
	Output   string
}

// Pool bounds concurrent command execution to Weight slots, the same role
// ninja's SubprocessSet.Running() cap plays, implemented with a
// semaphore instead of a polled slice.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool returns a Pool that runs at most weight commands at once.
func NewPool(weight int64) *Pool {
	if weight < 1 {
		weight = 1
	}
	return &Pool{sem: semaphore.NewWeighted(weight)}
}

// Run executes command through a shell, blocking until a pool slot is free
// and the command exits (or ctx is cancelled). useConsole mirrors
// ninja's use_console_ flag: when true the command inherits this
// process's console rather than having its output captured, used for
// actions that need interactive terminal behavior.
func (p *Pool) Run(ctx context.Context, command string, useConsole bool) (Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{Command: command, Status: StatusInterrupted}, err
	}
	defer p.sem.Release(1)

	shell, flag := "bash", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd.exe", "/c"
	}
	cmd := exec.CommandContext(ctx, shell, flag, command)

	var buf bytes.Buffer
	if !useConsole {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{Command: command, Status: StatusInterrupted, Output: buf.String()}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				Command:  command,
				Status:   StatusFailure,
				ExitCode: exitErr.ExitCode(),
				Output:   buf.String(),
			}, nil
		}
		return Result{}, fmt.Errorf("run %q: %w", command, err)
	}
	return Result{Command: command, Status: StatusSuccess, Output: buf.String()}, nil
}
