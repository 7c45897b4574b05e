// Package report renders a replay run as a standalone HTML page with per-step
// cards and before/after screenshots.
package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/v0xg/webreplay/internal/executor"
)

//go:embed report.html.tmpl
var reportTemplate string

// Data is everything the template needs.
type Data struct {
	RunID     string
	LogPath   string
	Generated string
	Total     int
	Passed    int
	Failed    int
	Steps     []executor.StepResult
}

// Write renders the report to path.
func Write(path, runID, logPath string, steps []executor.StepResult) error {
	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}

	data := Data{
		RunID:     runID,
		LogPath:   logPath,
		Generated: time.Now().Format("2006-01-02 15:04:05"),
		Total:     len(steps),
	}
	for _, s := range steps {
		if s.Success {
			data.Passed++
		} else {
			data.Failed++
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	data.Steps = steps
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
