// Package enrich fills in vision descriptions for recorded activities using a
// small fixed-size worker pool, so description generation for one step never
// blocks processing of the next. Results are joined back in recording order.
package enrich

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/v0xg/webreplay/internal/activity"
	"github.com/v0xg/webreplay/internal/vision"
)

// Workers is the pool size. Two is enough to hide model latency without
// hammering a local endpoint.
const Workers = 2

// job carries one activity's index so results can be joined in order.
type job struct {
	index int
	act   *activity.Activity
}

// Run generates a vision description for every activity that has a screenshot
// and no description yet, mutating the slice in place. Returns the number of
// descriptions written. Individual failures are logged and skipped; they never
// abort the batch.
func Run(ctx context.Context, finder vision.Finder, activities []activity.Activity) int {
	if finder == nil || !finder.Available() {
		slog.Warn("no vision backend available, skipping enrichment")
		return 0
	}

	jobs := make(chan job)
	descriptions := make([]string, len(activities))

	var wg sync.WaitGroup
	for w := 0; w < Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				descriptions[j.index] = describe(ctx, finder, j.act)
			}
		}()
	}

	for i := range activities {
		act := &activities[i]
		if act.VLMDescription != "" || act.Screenshot == nil || act.Screenshot.Path == "" {
			continue
		}
		select {
		case jobs <- job{index: i, act: act}:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return join(activities, descriptions)
		}
	}
	close(jobs)
	wg.Wait()

	return join(activities, descriptions)
}

// join writes the generated descriptions back in recording order.
func join(activities []activity.Activity, descriptions []string) int {
	count := 0
	for i, d := range descriptions {
		if d != "" {
			activities[i].VLMDescription = d
			count++
		}
	}
	return count
}

func describe(ctx context.Context, finder vision.Finder, act *activity.Activity) string {
	shot, err := os.ReadFile(act.Screenshot.Path)
	if err != nil {
		slog.Debug("screenshot unreadable, skipping", "path", act.Screenshot.Path, "error", err)
		return ""
	}

	hint := string(act.Action) + " on " + act.Describe()
	desc, err := finder.Describe(ctx, shot, hint)
	if err != nil {
		slog.Debug("description generation failed", "action", act.Action, "error", err)
		return ""
	}
	return desc
}
