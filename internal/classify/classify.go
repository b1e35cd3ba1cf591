// Package classify detects training completion and failure from free-text
// log lines.
package classify

import "strings"

// Outcome is the terminal state derived from a session's log lines.
type Outcome int

const (
	Running Outcome = iota
	Completed
	Failed
)

// String returns the lowercase name used in CLI output and JSON state.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "running"
	}
}

// Terminal reports whether the outcome ends a session.
func (o Outcome) Terminal() bool {
	return o == Completed || o == Failed
}

// MarshalText lets Outcome render as its name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the names written by MarshalText. Unknown names are
// treated as running.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "completed":
		*o = Completed
	case "failed":
		*o = Failed
	default:
		*o = Running
	}
	return nil
}

// Default vocabularies, matched case-insensitively as substrings.
var (
	ErrorTerms = []string{
		"error:",
		"exception:",
		"training failed",
		"out of memory",
		"cuda error",
	}
	CompleteTerms = []string{
		"training complete",
		"training finished",
		"training completed",
	}
)

// Result is the classification of one evaluation pass.
type Result struct {
	IsError    bool
	IsComplete bool
}

// Outcome maps the result onto the session outcome. Error wins.
func (r Result) Outcome() Outcome {
	switch {
	case r.IsError:
		return Failed
	case r.IsComplete:
		return Completed
	default:
		return Running
	}
}

// Classifier matches lines against an error and a completion vocabulary.
// Terms are stored lowercased.
type Classifier struct {
	errorTerms    []string
	completeTerms []string
}

// New builds a Classifier from the default vocabularies plus any extra terms.
func New(extraError, extraComplete []string) *Classifier {
	return &Classifier{
		errorTerms:    lowerAll(append(append([]string{}, ErrorTerms...), extraError...)),
		completeTerms: lowerAll(append(append([]string{}, CompleteTerms...), extraComplete...)),
	}
}

var std = New(nil, nil)

// Classify classifies a single line with the default vocabularies.
func Classify(line string) Result { return std.Classify(line) }

// ClassifyLines classifies a pass over several lines with the default vocabularies.
func ClassifyLines(lines []string) Result { return std.ClassifyLines(lines) }

// Classify reports whether line carries an error or completion marker. A
// line matching both is reported as an error only.
func (c *Classifier) Classify(line string) Result {
	lower := strings.ToLower(line)
	if containsAny(lower, c.errorTerms) {
		return Result{IsError: true}
	}
	return Result{IsComplete: containsAny(lower, c.completeTerms)}
}

// ClassifyLines evaluates lines as one pass: any error line makes the whole
// pass an error and suppresses completion.
func (c *Classifier) ClassifyLines(lines []string) Result {
	var res Result
	for _, line := range lines {
		r := c.Classify(line)
		if r.IsError {
			return Result{IsError: true}
		}
		if r.IsComplete {
			res.IsComplete = true
		}
	}
	return res
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
