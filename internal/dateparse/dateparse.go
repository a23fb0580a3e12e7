// Package dateparse resolves loosely written dates ("tomorrow", "next
// friday", "2024-01-05") into concrete moments. Explicit layouts are tried
// first; everything else goes through the natural-language parser.
package dateparse

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

type Parser struct {
	w *when.Parser
}

func New() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// layouts accepted before falling back to natural language. Date-only
// layouts resolve to midnight in base's location.
var layouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
	"2 Jan 2006",
	"Jan 2 2006",
	"2 Jan",
}

// Parse turns text into a moment. base anchors relative expressions and
// supplies the location. Parse fails when nothing in the text looks like
// a date.
func (p *Parser) Parse(text string, base time.Time) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, base.Location()); err == nil {
			// year-less layouts parse into year 0; pin them to base's year
			if t.Year() == 0 {
				t = t.AddDate(base.Year(), 0, 0)
			}
			return t, nil
		}
	}

	r, err := p.w.Parse(s, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return r.Time, nil
}
