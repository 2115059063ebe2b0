package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"agmerge/internal/agjson"
	"agmerge/internal/diag"
	"agmerge/internal/transform"
)

const (
	reportTable = "table"
	reportJSON  = "json"
	reportNone  = "none"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// renderReport prints a transform result in the requested format.
func renderReport(w io.Writer, format, name, graphID string, result transform.Result) error {
	switch format {
	case reportNone:
		return nil
	case reportJSON:
		return agjson.WriteReport(w, agjson.NewReport(graphID, name, result))
	}

	colorize := shouldColorize(w)
	lines := renderSectionHeader(fmt.Sprintf("%s %s", name, graphID), colorize)

	changeKind := statusOK
	if len(result.Changes) == 0 {
		changeKind = statusInfo
	}
	lines = append(lines,
		renderStatusLine("Changes", changeKind, strconv.Itoa(len(result.Changes)), colorize),
		renderStatusLine("Errors", countKind(len(result.Diagnostics.Errors), statusError), strconv.Itoa(len(result.Diagnostics.Errors)), colorize),
		renderStatusLine("Warnings", countKind(len(result.Diagnostics.Warnings), statusWarn), strconv.Itoa(len(result.Diagnostics.Warnings)), colorize),
	)
	if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
		return err
	}

	if len(result.Changes) > 0 {
		if _, err := fmt.Fprintln(w, changeSummary(result)); err != nil {
			return err
		}
	}
	for _, d := range result.Diagnostics.Errors {
		if _, err := fmt.Fprintln(w, renderDiagnostic(d, statusError, colorize)); err != nil {
			return err
		}
	}
	for _, d := range result.Diagnostics.Warnings {
		if _, err := fmt.Fprintln(w, renderDiagnostic(d, statusWarn, colorize)); err != nil {
			return err
		}
	}
	return nil
}

func countKind(n int, kind statusKind) statusKind {
	if n == 0 {
		return statusOK
	}
	return kind
}

// changeSummary tabulates changes by operation, kind and key.
func changeSummary(result transform.Result) string {
	type group struct{ op, kind, key string }
	counts := map[group]int{}
	for _, c := range result.Changes {
		counts[group{c.Operation.String(), string(c.Kind), c.Key}]++
	}
	groups := make([]group, 0, len(counts))
	for g := range counts {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.op != b.op {
			return a.op < b.op
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.key < b.key
	})
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.op, g.kind, g.key, strconv.Itoa(counts[g])})
	}
	return renderTable(
		[]string{"Operation", "Kind", "Key", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func renderDiagnostic(d diag.Diagnostic, kind statusKind, colorize bool) string {
	label := d.Subject
	if label == "" {
		label = d.Component
	}
	message := d.Message
	if d.Subject != "" && d.Component != "" {
		message = d.Component + ": " + message
	}
	return renderStatusLine(label, kind, message, colorize)
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
