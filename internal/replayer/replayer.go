// Package replayer drives the executor over a recorded activity log, one
// activity at a time, persisting results and rendering the run summary.
package replayer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"

	"github.com/v0xg/webreplay/internal/activity"
	"github.com/v0xg/webreplay/internal/executor"
	"github.com/v0xg/webreplay/internal/report"
	"github.com/v0xg/webreplay/internal/store"
)

// StepRunner is satisfied by *executor.Executor.
type StepRunner interface {
	Execute(ctx context.Context, act *activity.Activity) (executor.StepResult, error)
}

// Summary aggregates a finished (or aborted) run.
type Summary struct {
	RunID   string
	Total   int
	Passed  int
	Failed  int
	Fatal   error
	Results []executor.StepResult
}

// Replayer wires the executor to persistence and reporting.
type Replayer struct {
	Exec       StepRunner
	Store      *store.Store // optional
	ReportPath string       // optional
	StepPause  time.Duration
}

// Run replays every activity in order. A session-fatal executor error aborts
// the remaining activities and is reported in the summary; ordinary step
// failures just count against the run.
func (r *Replayer) Run(ctx context.Context, logPath string, activities []activity.Activity) Summary {
	var summary Summary
	summary.Total = len(activities)

	if r.Store != nil {
		id, err := r.Store.CreateRun(logPath)
		if err != nil {
			slog.Warn("run persistence disabled", "error", err)
		} else {
			summary.RunID = id
		}
	}

	for i := range activities {
		act := &activities[i]
		fmt.Printf("  [%d/%d] %s...", i+1, len(activities), act.Action)

		result, err := r.Exec.Execute(ctx, act)
		if err != nil {
			fmt.Printf(" fatal\n")
			summary.Fatal = fmt.Errorf("step %d (%s): %w", i+1, act.Action, err)
			break
		}

		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.Passed++
			fmt.Printf(" ok (%s)\n", result.Method)
		} else {
			summary.Failed++
			fmt.Printf(" FAILED (%s) %s\n", result.Method, result.Error)
		}

		if r.Store != nil && summary.RunID != "" {
			if err := r.Store.SaveStep(summary.RunID, result); err != nil {
				slog.Warn("step not persisted", "step", result.Step, "error", err)
			}
		}

		if r.StepPause > 0 && i < len(activities)-1 {
			time.Sleep(r.StepPause)
		}
	}

	r.finish(logPath, &summary)
	return summary
}

func (r *Replayer) finish(logPath string, summary *Summary) {
	if r.Store != nil && summary.RunID != "" {
		status := "completed"
		if summary.Fatal != nil {
			status = "fatal"
		}
		if err := r.Store.FinishRun(summary.RunID, status, summary.Total, summary.Passed, summary.Failed); err != nil {
			slog.Warn("run not finalized", "error", err)
		}
	}

	if r.ReportPath != "" && len(summary.Results) > 0 {
		if err := report.Write(r.ReportPath, summary.RunID, logPath, summary.Results); err != nil {
			slog.Warn("report not written", "error", err)
		} else {
			fmt.Printf("\nReport: %s\n", r.ReportPath)
		}
	}
}

// PrintSummary prints the colored pass/fail totals.
func PrintSummary(s Summary) {
	fmt.Println()
	color.New(color.Bold).Println("Replay summary")
	color.Green("  passed: %d", s.Passed)
	if s.Failed > 0 {
		color.Red("  failed: %d", s.Failed)
	} else {
		fmt.Printf("  failed: %d\n", s.Failed)
	}
	if skipped := s.Total - s.Passed - s.Failed; skipped > 0 {
		color.Yellow("  not run: %d", skipped)
	}
	if s.Fatal != nil {
		color.New(color.FgRed, color.Bold).Printf("  fatal: %v\n", s.Fatal)
	}
}
