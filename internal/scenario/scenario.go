// Package scenario runs the end-to-end checks against the workflow service
// and the recording browser, and reduces each run to pass/fail criteria.
package scenario

import (
	"context"
	"time"

	"github.com/thesyncim/vstream/pkg/rrweb"
)

// Criterion is one named pass/fail check of a run.
type Criterion struct {
	Name string `json:"name"`
	Pass bool   `json:"pass"`
	// Informational criteria are reported but do not affect the verdict.
	Informational bool `json:"informational,omitempty"`
}

// Report is the outcome of one scenario run.
type Report struct {
	Name     string            `json:"name"`
	Criteria []Criterion       `json:"criteria"`
	Summary  *rrweb.Summary    `json:"summary,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
	Sites    []SiteResult      `json:"sites,omitempty"`
	Duration time.Duration     `json:"-"`
	Error    string            `json:"error,omitempty"`
}

// Passed reports whether the run completed and every required criterion
// passed. A report without criteria does not pass.
func (r Report) Passed() bool {
	if r.Error != "" {
		return false
	}
	required := 0
	for _, c := range r.Criteria {
		if c.Informational {
			continue
		}
		required++
		if !c.Pass {
			return false
		}
	}
	return required > 0
}

// Criterion returns the named criterion.
func (r Report) Criterion(name string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.Name == name {
			return c, true
		}
	}
	return Criterion{}, false
}

func (r *Report) check(name string, pass bool) {
	r.Criteria = append(r.Criteria, Criterion{Name: name, Pass: pass})
}

func (r *Report) inform(name string, pass bool) {
	r.Criteria = append(r.Criteria, Criterion{Name: name, Pass: pass, Informational: true})
}

func (r *Report) fail(err error) {
	r.Error = err.Error()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
