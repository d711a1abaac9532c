// Package subprocess is the default CodingAgent realization: it shells out
// to a configured external coding-tool binary and drives it to completion
// under the subprocess contract in spec.md §4.7 (total timeout, 90%
// no-output timeout reset by any streamed line, kill on expiry). Grounded
// on the teacher's capabilities/system RunCommandTool
// (exec.CommandContext + cmd.Dir) for process invocation, and on
// lsp/client.go's StdoutPipe/bufio.Scanner streaming-read idiom for
// pumping output without blocking on the whole command finishing first.
package subprocess

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"tac/config"
	"tac/core/types"
)

// Agent drives an external coding-tool binary. The binary is invoked once
// per Run call with the ProtoBlock and previous analysis passed as a JSON
// payload on stdin; it is expected to edit write_files in place and exit
// zero on success.
type Agent struct {
	Binary string
}

func New() *Agent {
	return &Agent{Binary: config.Get().General.CodingAgentBinary}
}

type payload struct {
	TaskDescription    string            `json:"task_description"`
	WriteFiles         []string          `json:"write_files"`
	ContextFiles       []string          `json:"context_files"`
	PreviousAnalysis   string            `json:"previous_analysis,omitempty"`
	VisualDescription  string            `json:"visual_description,omitempty"`
	TrustyAgentPrompts map[string]string `json:"trusty_agent_prompts,omitempty"`
}

// Run realizes types.CodingAgent: invoke the binary, stream its output
// under the timeout contract, and report the outcome as a Result.
func (a *Agent) Run(ctx context.Context, block *types.ProtoBlock, previousAnalysis string) (types.Result, error) {
	cfg := config.Get()

	total := cfg.General.CodingAgentTotalTimeout
	if total <= 0 {
		total = 600 * time.Second
	}
	noOutput := time.Duration(float64(total) * 0.9)

	ctx, cancel := context.WithTimeout(ctx, total)
	defer cancel()

	p := payload{
		TaskDescription:    block.TaskDescription,
		WriteFiles:         block.WriteFiles,
		ContextFiles:       block.ContextFiles,
		PreviousAnalysis:   previousAnalysis,
		TrustyAgentPrompts: block.TrustyAgentPrompts,
	}
	if block.VisualMetadata != nil {
		p.VisualDescription = block.VisualMetadata.VisualDescription
	}
	stdin, err := json.Marshal(p)
	if err != nil {
		return types.Result{}, fmt.Errorf("subprocess: failed to marshal payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.Binary)
	cmd.Stdin = strings.NewReader(string(stdin))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return types.Result{}, fmt.Errorf("subprocess: failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return types.Result{}, fmt.Errorf("subprocess: failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return types.Result{}, fmt.Errorf("subprocess: failed to start %s: %w", a.Binary, err)
	}

	var output strings.Builder
	var mu sync.Mutex
	lastOutput := make(chan struct{}, 1)
	signal := func() {
		select {
		case lastOutput <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	pump := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			mu.Lock()
			output.WriteString(scanner.Text())
			output.WriteByte('\n')
			mu.Unlock()
			signal()
		}
	}
	wg.Add(2)
	go pump(stdout)
	go pump(stderr)

	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(noOutput)
	defer timer.Stop()

	var runErr error
	timedOut := false
loop:
	for {
		select {
		case runErr = <-done:
			break loop
		case <-lastOutput:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(noOutput)
		case <-timer.C:
			timedOut = true
			_ = cmd.Process.Kill()
			runErr = <-done
			break loop
		case <-ctx.Done():
			timedOut = true
			_ = cmd.Process.Kill()
			runErr = <-done
			break loop
		}
	}

	mu.Lock()
	capturedOutput := output.String()
	mu.Unlock()

	if timedOut {
		return types.Result{}, &types.Failure{
			Kind:    types.FailureCodingAgentTimeout,
			Message: fmt.Sprintf("coding agent produced no output for %s (total timeout %s)", noOutput, total),
		}
	}
	if runErr != nil {
		return types.Result{
			Success:   false,
			AgentType: "coding_agent",
			Summary:   "coding agent exited with an error",
			Components: []types.Component{
				types.ErrorComp("CodingAgentFailure", runErr.Error(), capturedOutput),
			},
		}, &types.Failure{Kind: types.FailureCodingAgent, Message: runErr.Error()}
	}

	return types.Result{
		Success:   true,
		AgentType: "coding_agent",
		Summary:   "coding agent completed",
		Components: []types.Component{
			types.ReportComp("coding agent output", capturedOutput),
		},
	}, nil
}

var _ types.CodingAgent = (*Agent)(nil)
