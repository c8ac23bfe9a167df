package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// statusf writes progress chatter to stderr. Silenced by --quiet so
// scripted callers see only the payload on stdout.
func statusf(quiet bool, format string, args ...any) {
	if quiet {
		return
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

// formatTime renders a compact timestamp, trading the clock for the year
// on entries from earlier years.
func formatTime(t time.Time) string {
	layout := "Jan _2 15:04"
	if t.Year() != time.Now().Year() {
		layout = "Jan _2  2006"
	}

	return t.Format(layout)
}

// printTable renders headers and rows as two-space-padded aligned columns.
func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}
