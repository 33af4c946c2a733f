package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ytget/velora/internal/app"
	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/platform"
	"github.com/ytget/velora/internal/resolver"
)

// progressStep limits output to one line per phase every few percent
const progressStep = 5.0

// renderProgress prints events until the channel is closed
func renderProgress(events <-chan model.ProgressEvent, w io.Writer) {
	type key struct {
		job   string
		phase model.Phase
	}
	last := map[key]float64{}
	for ev := range events {
		k := key{ev.JobID, ev.Phase}
		prev, seen := last[k]
		if seen && ev.Percent < 100 && ev.Percent-prev < progressStep {
			continue
		}
		last[k] = ev.Percent
		fmt.Fprintln(w, formatEvent(ev))
	}
}

func formatEvent(ev model.ProgressEvent) string {
	var b strings.Builder
	if ev.Item > 0 {
		fmt.Fprintf(&b, "[%d] ", ev.Item)
	}
	fmt.Fprintf(&b, "%-16s", ev.Phase)
	if ev.HasPercent() {
		fmt.Fprintf(&b, " %5.1f%%", ev.Percent)
	}
	if ev.TotalBytes > 0 {
		b.WriteString(" of " + humanize.IBytes(uint64(ev.TotalBytes)))
	}
	if ev.Rate > 0 {
		b.WriteString(" at " + humanize.IBytes(uint64(ev.Rate)) + "/s")
	}
	if ev.ETA > 0 {
		b.WriteString(" ETA " + ev.ETAString())
	}
	return b.String()
}

// printReport prints one line per job and reports whether all succeeded
func printReport(r app.Report, w io.Writer) bool {
	if r.Batch != nil {
		fmt.Fprintf(w, "Playlist %q: %d succeeded, %d failed, %d cancelled\n",
			r.Batch.Title, r.Batch.Succeeded, r.Batch.Failed, r.Batch.Cancelled)
	}
	ok := true
	for _, res := range r.Results() {
		fmt.Fprintln(w, formatResult(res))
		if res.Outcome != model.OutcomeSuccess {
			ok = false
		}
	}
	for _, loc := range r.Published {
		fmt.Fprintln(w, "  published "+loc)
	}
	if r.PublishErr != nil {
		fmt.Fprintf(w, "  publishing failed: %v\n", r.PublishErr)
	}
	return ok
}

func formatResult(res model.JobResult) string {
	prefix := ""
	if res.Item > 0 {
		prefix = fmt.Sprintf("[%d] ", res.Item)
	}
	switch res.Outcome {
	case model.OutcomeSuccess:
		size := humanize.Bytes(uint64(max(platform.FileSize(res.Artifact()), 0)))
		line := fmt.Sprintf("%s✓ %s -> %s (%s, %s)", prefix, res.DisplayTitle(), res.Artifact(), size,
			res.Elapsed().Round(time.Second))
		if len(res.Artifacts) > 1 {
			for _, extra := range res.Artifacts[1:] {
				line += "\n    + " + extra
			}
		}
		return line
	case model.OutcomeCancelled:
		return fmt.Sprintf("%s- %s cancelled", prefix, res.DisplayTitle())
	}
	if res.Err == nil {
		return fmt.Sprintf("%s✗ %s failed", prefix, res.DisplayTitle())
	}
	return fmt.Sprintf("%s✗ %s: %s", prefix, res.DisplayTitle(), describeError(res.Err))
}

// describeError renders a failure with its hint
func describeError(err error) string {
	fe, ok := failure.As(err)
	if !ok {
		if err == nil {
			return "unknown error"
		}
		return err.Error()
	}
	s := fe.Error()
	if fe.Retryable {
		s += " (retryable)"
	}
	if h := fe.Hint(); h != "" {
		s += "\n    hint: " + h
	}
	return s
}

func printFormats(ctx context.Context, res *resolver.Resolver, urls []string, stdout, stderr io.Writer) int {
	code := exitOK
	for _, u := range urls {
		formats, err := res.ListFormats(ctx, u)
		if err != nil {
			fmt.Fprintf(stderr, "velora: %s: %s\n", u, describeError(err))
			code = exitFailed
			continue
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEXT\tRESOLUTION\tVCODEC\tACODEC\tSIZE\tNOTE")
		for _, f := range formats {
			if f.IsStoryboard() {
				continue
			}
			size := "-"
			if f.Size > 0 {
				size = humanize.Bytes(uint64(f.Size))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				f.ID, f.Container, f.Resolution(), orDash(f.VideoCodec), orDash(f.AudioCodec), size, f.Note)
		}
		tw.Flush()
	}
	return code
}

func printInfo(ctx context.Context, res *resolver.Resolver, urls []string, stdout, stderr io.Writer) int {
	code := exitOK
	for _, u := range urls {
		md, err := res.Probe(ctx, u, true)
		if err != nil {
			fmt.Fprintf(stderr, "velora: %s: %s\n", u, describeError(err))
			code = exitFailed
			continue
		}
		fmt.Fprintf(stdout, "Title:    %s\n", md.Title)
		if md.Uploader != "" {
			fmt.Fprintf(stdout, "Uploader: %s\n", md.Uploader)
		}
		fmt.Fprintf(stdout, "Platform: %s\n", platform.ResolvePlatform(u, md.Extractor))
		if md.HasDuration() {
			fmt.Fprintf(stdout, "Duration: %s\n", (time.Duration(md.Duration * float64(time.Second))).Round(time.Second))
		}
		if md.IsPlaylist {
			fmt.Fprintf(stdout, "Playlist: %d items\n", len(md.Entries))
			for _, e := range md.Entries {
				fmt.Fprintf(stdout, "  %3d. %s\n", e.Index, e.Title)
			}
		} else {
			fmt.Fprintf(stdout, "Formats:  %d\n", len(md.Formats))
		}
	}
	return code
}

func orDash(s string) string {
	if s == "" || s == "none" {
		return "-"
	}
	return s
}
