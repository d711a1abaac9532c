// Package vision is the non-comparative vision trust agent: launch the
// task's program, wait, screenshot it, and ask a vision LLM for a YES/NO
// verdict against the agent-specific prompt, per spec.md §4.5. Grounded on
// the teacher's capabilities/web content-extraction (goquery usage) for
// the HTML-readiness probe ADD, and llm/manager.go for the PurposeVision
// tiered call.
package vision

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tac/config"
	"tac/core/types"
	"tac/llm"
	"tac/visionhost"
)

const AgentName = "vision"

type Agent struct {
	block    *types.ProtoBlock
	Launcher visionhost.Launcher
	Capturer visionhost.Capturer
}

func New() types.TrustAgent {
	return &Agent{
		Launcher: visionhost.ProcessLauncher{},
		Capturer: visionhost.SynthesizedCapturer{},
	}
}

func (a *Agent) SetProtoBlock(block *types.ProtoBlock) { a.block = block }

// mainNameHeuristic picks the likeliest entry point per spec.md §4.5:
// a write_files entry with "main" in its name, else one with an
// if-__main__-equivalent guard (func main() in Go), else any plausible
// candidate.
func mainNameHeuristic(writeFiles []string, view types.CodebaseView) string {
	for _, f := range writeFiles {
		if strings.Contains(strings.ToLower(filepath.Base(f)), "main") {
			return f
		}
	}
	mainFuncPattern := regexp.MustCompile(`(?m)^func\s+main\s*\(`)
	for _, f := range writeFiles {
		if content, ok := view.Files[f]; ok && mainFuncPattern.MatchString(content) {
			return f
		}
	}
	if len(writeFiles) > 0 {
		return writeFiles[0]
	}
	return ""
}

// probeHTMLReadiness fetches target over HTTP and checks for the
// configured readiness marker element using goquery, per SPEC_FULL §4.5/4.6
// ADD. Returns true immediately for non-HTML (non-http) targets, since the
// probe only applies to HTML vision targets.
func probeHTMLReadiness(ctx context.Context, target, marker string, timeout time.Duration) (bool, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return true, nil
	}
	if marker == "" {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return false, err
	}
	return doc.Find(marker).Length() > 0, nil
}

func (a *Agent) Check(ctx context.Context, block *types.ProtoBlock, view types.CodebaseView, codeDiff string) (types.Result, error) {
	cfg := config.Get()

	entry := mainNameHeuristic(block.WriteFiles, view)
	if entry == "" {
		return types.Result{}, fmt.Errorf("vision: no plausible program entry point found in write_files")
	}

	target := entry
	if cfg.Vision.ReadinessMarker != "" {
		if ready, err := probeHTMLReadiness(ctx, target, cfg.Vision.ReadinessMarker, cfg.Vision.ReadinessProbeTimeout); err == nil && !ready {
			return types.Result{
				Success:   false,
				AgentType: AgentName,
				Summary:   "readiness marker never appeared",
				Components: []types.Component{
					types.ErrorComp("readiness_timeout", fmt.Sprintf("marker %q not found before timeout", cfg.Vision.ReadinessMarker), ""),
				},
			}, nil
		}
	}

	handle, err := a.Launcher.Launch(ctx, "go", []string{"run", entry})
	if err != nil {
		return types.Result{}, fmt.Errorf("vision: failed to launch target: %w", err)
	}
	defer handle.Stop()

	if err := visionhost.AwaitReady(ctx, cfg.General.VisionScreenshotDelay); err != nil {
		return types.Result{}, fmt.Errorf("vision: wait for readiness: %w", err)
	}

	shotPath := filepath.Join(os.TempDir(), fmt.Sprintf("tac_vision_%s.png", block.BlockID))
	width, height, err := a.Capturer.Capture(ctx, shotPath)
	if err != nil {
		return types.Result{}, fmt.Errorf("vision: capture failed: %w", err)
	}

	verdict, justification, err := a.judge(ctx, block, shotPath)
	if err != nil {
		return types.Result{}, err
	}

	return types.Result{
		Success:   verdict,
		AgentType: AgentName,
		Summary:   fmt.Sprintf("vision verdict: %s", yesNo(verdict)),
		Components: []types.Component{
			types.ScreenshotComp(shotPath, width, height),
			types.ReportComp("vision justification", justification),
		},
	}, nil
}

func (a *Agent) judge(ctx context.Context, block *types.ProtoBlock, screenshotPath string) (bool, string, error) {
	if llm.Default == nil {
		return false, "", fmt.Errorf("vision: no LLM manager configured")
	}

	prompt := block.TrustyAgentPrompts[AgentName]
	if prompt == "" {
		prompt = "Does the screenshot show the program behaving as the task describes? Answer YES or NO, then justify."
	}

	resp, err := llm.Default.Generate(ctx, llm.PurposeVision, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a vision QA judge for an automated coding loop. Answer with a line starting YES or NO, then a justification paragraph."},
			{Role: "user", Content: fmt.Sprintf("TASK:\n%s\n\nAGENT PROMPT:\n%s", block.TaskDescription, prompt)},
		},
		ImageURLs: []string{screenshotPath},
	})
	if err != nil {
		return false, "", fmt.Errorf("vision: LLM call failed: %w", err)
	}

	trimmed := strings.TrimSpace(resp.Content)
	verdict := strings.HasPrefix(strings.ToUpper(trimmed), "YES")
	return verdict, resp.Content, nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

var _ types.TrustAgent = (*Agent)(nil)
var _ types.ProtoBlockInjectable = (*Agent)(nil)
