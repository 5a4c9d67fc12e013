package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/Skryldev/audiobatch"
)

// renderTable draws rows under headers in the rounded style. Column
// numbers listed in right (1-based) are right-aligned.
func renderTable(headers []string, rows [][]string, right ...int) string {
	width := len(headers)
	if width == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(tableRow(headers, width))
	for _, r := range rows {
		tw.AppendRow(tableRow(r, width))
	}

	configs := make([]table.ColumnConfig, 0, len(right))
	for _, n := range right {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// tableRow pads or truncates cells to width.
func tableRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newProgressReporter draws a progress bar on terminals and prints one
// line per finished item otherwise. finish must be called once the run
// returns.
func newProgressReporter(w io.Writer, tty bool) (audiobatch.Reporter, func()) {
	if tty {
		r := &barReporter{w: w}
		return r, r.finish
	}
	return &lineReporter{w: w}, func() {}
}

type barReporter struct {
	w io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (r *barReporter) Report(u audiobatch.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Total == 0 {
		return
	}
	if r.bar == nil {
		r.bar = progressbar.NewOptions(u.Total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription("converting"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	if u.Stage == audiobatch.StageDiscover {
		r.bar.ChangeMax(u.Total)
		return
	}
	_ = r.bar.Set(u.Done)
}

func (r *barReporter) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

type lineReporter struct {
	w  io.Writer
	mu sync.Mutex
}

func (r *lineReporter) Report(u audiobatch.ProgressUpdate) {
	var verb string
	switch u.Stage {
	case audiobatch.StageEncode:
		verb = "converted"
	case audiobatch.StageSkip:
		verb = "skipped"
	case audiobatch.StageFail:
		verb = "failed"
	case audiobatch.StagePreview:
		verb = "planned"
	default:
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	line := fmt.Sprintf("[%d/%d] %s %s", u.Done, u.Total, verb, u.Path)
	if u.Stage == audiobatch.StageFail && u.Message != "" {
		line += ": " + firstLine(u.Message)
	}
	fmt.Fprintln(r.w, line)
}

func renderRun(w io.Writer, s audiobatch.RunSummary) {
	if len(s.Previews) > 0 {
		fmt.Fprintln(w, "Planned conversions:")
		for _, p := range s.Previews {
			note := ""
			if p.OutputExists {
				note = "  # output exists, a real run skips this file"
			}
			fmt.Fprintf(w, "  %s%s\n", commandLine(p.Invocation.Binary, p.Invocation.Args), note)
		}
		fmt.Fprintln(w)
	}

	rows := [][]string{
		{"Discovered", strconv.Itoa(s.TotalDiscovered)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
	}
	if s.Previewed > 0 {
		rows = append(rows, []string{"Previewed", strconv.Itoa(s.Previewed)})
	}
	if s.NotProcessed > 0 {
		rows = append(rows, []string{"Not processed", strconv.Itoa(s.NotProcessed)})
	}
	if s.OutputBytes > 0 {
		rows = append(rows, []string{"Written", humanize.Bytes(uint64(s.OutputBytes))})
	}
	rows = append(rows, []string{"Elapsed", s.Elapsed.Round(time.Millisecond).String()})
	fmt.Fprintln(w, renderTable([]string{"Result", "Count"}, rows, 2))

	if len(s.Failures) > 0 {
		failRows := make([][]string, 0, len(s.Failures))
		for _, f := range s.Failures {
			failRows = append(failRows, []string{f.RelPath, string(f.Kind), firstLine(f.Message)})
		}
		fmt.Fprintln(w, "Failures:")
		fmt.Fprintln(w, renderTable([]string{"File", "Kind", "Message"}, failRows))
	}
}

// commandLine renders argv for copy-paste inspection.
func commandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(binary))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
