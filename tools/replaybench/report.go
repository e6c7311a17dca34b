package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func printStats(stats *ReplayStats) {
	clean := stats.Positions - stats.Drifted

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("%s Replay\n", statusEmoji(clean, stats.Drifted, stats.Failed))
	fmt.Printf("  Start Time:  %s\n", stats.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("  End Time:    %s\n", stats.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Duration:    %s\n", formatDuration(stats.Duration))
	fmt.Println()

	fmt.Printf("Users:\n")
	fmt.Printf("  Replayed:    %d (%s)\n", stats.Users, formatRate(stats.Users, stats.Duration))
	if stats.Failed > 0 {
		fmt.Printf("  Failed:      %d (%s)\n", stats.Failed, percentageString(stats.Failed, stats.Users))
	}
	fmt.Printf("  Events:      %d (%s)\n", stats.Events, formatRate(stats.Events, stats.Duration))
	fmt.Println()

	fmt.Printf("Positions:\n")
	fmt.Printf("  Checked:     %d\n", stats.Positions)
	fmt.Printf("  Clean:       %d (%s)\n", clean, percentageString(clean, stats.Positions))
	if stats.Drifted > 0 {
		fmt.Printf("  Drifted:     %d (%s)\n", stats.Drifted, percentageString(stats.Drifted, stats.Positions))
	}
	fmt.Println()

	fmt.Printf("Timing:\n")
	fmt.Printf("  Load p50/p95/p99:    %s / %s / %s\n",
		formatDuration(stats.LoadPercentile(50)), formatDuration(stats.LoadPercentile(95)), formatDuration(stats.LoadPercentile(99)))
	fmt.Printf("  Replay p50/p95/p99:  %s / %s / %s\n",
		formatDuration(stats.ReplayPercentile(50)), formatDuration(stats.ReplayPercentile(95)), formatDuration(stats.ReplayPercentile(99)))
	fmt.Printf("  Total load:          %s\n", formatDuration(stats.TotalLoad))
	fmt.Printf("  Total replay:        %s\n", formatDuration(stats.TotalReplay))

	for _, sample := range stats.Errors {
		fmt.Printf("\n  ❌ %s: %v", sample.User, sample.Err)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", 80))
}

// writeMarkdownReport writes a markdown report of the replay stats
func writeMarkdownReport(path string, stats *ReplayStats) error {
	file, err := os.Create(path) //nolint:gosec,G304
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	return renderMarkdown(file, stats)
}

func renderMarkdown(w io.Writer, stats *ReplayStats) error {
	var b strings.Builder
	clean := stats.Positions - stats.Drifted

	b.WriteString("# Replay Benchmark Report\n\n")
	fmt.Fprintf(&b, "**Status:** %s  \n", statusEmoji(clean, stats.Drifted, stats.Failed))
	fmt.Fprintf(&b, "**Started:** %s  \n", stats.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Duration:** %s\n\n", formatDuration(stats.Duration))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Users | %d |\n", stats.Users)
	fmt.Fprintf(&b, "| Failed users | %d (%s) |\n", stats.Failed, percentageString(stats.Failed, stats.Users))
	fmt.Fprintf(&b, "| Events replayed | %d |\n", stats.Events)
	fmt.Fprintf(&b, "| Positions checked | %d |\n", stats.Positions)
	fmt.Fprintf(&b, "| Drifted positions | %d (%s) |\n", stats.Drifted, percentageString(stats.Drifted, stats.Positions))
	fmt.Fprintf(&b, "| User throughput | %s |\n", formatRate(stats.Users, stats.Duration))
	fmt.Fprintf(&b, "| Event throughput | %s |\n\n", formatRate(stats.Events, stats.Duration))

	b.WriteString("## Timing\n\n")
	b.WriteString("| Phase | p50 | p95 | p99 | Total |\n")
	b.WriteString("|-------|-----|-----|-----|-------|\n")
	fmt.Fprintf(&b, "| Load | %s | %s | %s | %s |\n",
		formatDuration(stats.LoadPercentile(50)), formatDuration(stats.LoadPercentile(95)),
		formatDuration(stats.LoadPercentile(99)), formatDuration(stats.TotalLoad))
	fmt.Fprintf(&b, "| Replay | %s | %s | %s | %s |\n\n",
		formatDuration(stats.ReplayPercentile(50)), formatDuration(stats.ReplayPercentile(95)),
		formatDuration(stats.ReplayPercentile(99)), formatDuration(stats.TotalReplay))

	if len(stats.Slowest) > 0 {
		b.WriteString("## Slowest Users\n\n")
		b.WriteString("| User | Events | Positions | Load | Replay |\n")
		b.WriteString("|------|--------|-----------|------|--------|\n")
		for _, s := range stats.Slowest {
			fmt.Fprintf(&b, "| `%s` | %d | %d | %s | %s |\n",
				shortAddress(s.User), s.Events, s.Positions, formatDuration(s.LoadTime), formatDuration(s.ReplayTime))
		}
		b.WriteString("\n")
	}

	if len(stats.Drifts) > 0 {
		b.WriteString("## Drifted Positions\n\n")
		b.WriteString("| User | Leveraged Token | Cost Drift | Realized Drift |\n")
		b.WriteString("|------|-----------------|------------|----------------|\n")
		for i := range stats.Drifts {
			d := &stats.Drifts[i]
			fmt.Fprintf(&b, "| `%s` | `%s` | %s | %s |\n",
				d.User, d.LeveragedToken, d.CostDrift(), d.RealizedDrift())
		}
		b.WriteString("\n")
	}

	if len(stats.Errors) > 0 {
		b.WriteString("## Errors\n\n")
		for _, s := range stats.Errors {
			fmt.Fprintf(&b, "- `%s`: %v\n", s.User, s.Err)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
