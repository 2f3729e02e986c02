// Package report renders scenario reports for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/thesyncim/vstream/internal/scenario"
	"github.com/thesyncim/vstream/pkg/rrweb"
)

// Status returns "PASS" or "FAIL" for r.
func Status(r scenario.Report) string {
	return checkMark(r.Passed())
}

func checkMark(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// Text writes a human-readable summary of r.
func Text(w io.Writer, r scenario.Report) error {
	p := &printer{w: w}

	title := fmt.Sprintf("%s Results", r.Name)
	p.printf("\n%s\n%s\n", title, strings.Repeat("=", len(title)))
	p.printf("Duration:          %.2fs\n", r.Duration.Seconds())
	if r.Error != "" {
		p.printf("Error:             %s\n", r.Error)
	}
	for _, k := range sortedKeys(r.Details) {
		p.printf("%-18s %s\n", k+":", r.Details[k])
	}

	if r.Summary != nil {
		p.printf("\n")
		writeSummary(p, "", *r.Summary)
	}

	for _, s := range r.Sites {
		p.printf("\n%s (%s)\n", s.Name, s.URL)
		p.printf("  Status:            %s\n", checkMark(s.Success))
		p.printf("  Duration:          %.2fs\n", s.Duration.Seconds())
		if s.Error != "" {
			p.printf("  Error:             %s\n", s.Error)
			continue
		}
		writeSummary(p, "  ", s.Summary)
	}

	if len(r.Criteria) > 0 {
		p.printf("\nPass Criteria:\n")
		for _, c := range r.Criteria {
			suffix := ""
			if c.Informational {
				suffix = " (informational)"
			}
			p.printf("  - %s: %s%s\n", c.Name, checkMark(c.Pass), suffix)
		}
	}

	p.printf("\nStatus:            %s\n", Status(r))
	return p.err
}

func writeSummary(p *printer, indent string, s rrweb.Summary) {
	p.printf("%sTotal events:      %d\n", indent, s.TotalEvents)
	p.printf("%sFullSnapshots:     %d\n", indent, s.FullSnapshots)
	p.printf("%sNavigation events: %d\n", indent, s.NavigationEvents)
	p.printf("%sEvent duration:    %.2fs\n", indent, s.Duration.Seconds())
	p.printf("%sEvents/sec:        %.1f\n", indent, s.EventsPerSecond)
	if s.RecentEventsPerSecond > 0 {
		p.printf("%sRecent rate:       %.1f events/s, %.1f KB/s\n", indent, s.RecentEventsPerSecond, s.RecentBytesPerSecond/1024)
	}
	if len(s.EventTypes) > 0 {
		p.printf("%sEvent types:\n", indent)
		for _, label := range s.Labels() {
			p.printf("%s  %-22s %d\n", indent, typeName(label)+":", s.EventTypes[label])
		}
	}
	if len(s.Errors) > 0 {
		p.printf("%sErrors:            %d\n", indent, len(s.Errors))
		for _, e := range s.Errors {
			p.printf("%s  %s\n", indent, e)
		}
	}
}

// typeName turns an event-type label into "2 (FullSnapshot)".
func typeName(label string) string {
	n, err := strconv.Atoi(label)
	if err != nil {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, rrweb.EventType(n))
}

// document is the JSON form of a report. Durations, including those of
// the nested summary and sites, are in seconds.
type document struct {
	scenario.Report
	Status          string  `json:"status"`
	Passed          bool    `json:"passed"`
	DurationSeconds float64 `json:"duration_seconds"`
	GeneratedAt     string  `json:"generated_at"`
}

// JSON writes r as an indented JSON document.
func JSON(w io.Writer, r scenario.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{
		Report:          r,
		Status:          Status(r),
		Passed:          r.Passed(),
		DurationSeconds: r.Duration.Seconds(),
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

// Write renders r as JSON when asJSON is set and as text otherwise.
func Write(w io.Writer, r scenario.Report, asJSON bool) error {
	if asJSON {
		return JSON(w, r)
	}
	return Text(w, r)
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
