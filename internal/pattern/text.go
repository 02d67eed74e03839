package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cbegin/rhythmkit-go/internal/timing"
)

var ErrInvalidText = errors.New("invalid pattern text")

// FormatText writes the compact text form: value codes separated by spaces,
// measures separated by " | ", rests prefixed with "r:", accents suffixed
// with ">".
func FormatText(p *Pattern) string {
	var b strings.Builder
	for i, m := range p.Measures {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(FormatMeasure(m.Events))
	}
	return b.String()
}

func FormatMeasure(events []Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		token := e.Value.Code()
		if e.Kind == Rest {
			token = "r:" + token
		} else if e.Accent {
			token += ">"
		}
		parts[i] = token
	}
	return strings.Join(parts, " ")
}

// ParseText reads the text form back into measures of sig. Every measure must
// sum exactly to the meter's capacity. Error positions are byte offsets.
func ParseText(sig timing.TimeSignature, text string) ([]Measure, error) {
	if err := timing.ValidateSignature(sig); err != nil {
		return nil, err
	}
	capacity := sig.Capacity()
	var measures []Measure
	var events []Event
	sum := timing.Zero
	closeMeasure := func(at int) error {
		if len(events) == 0 {
			return fmt.Errorf("%w: empty measure at %d", ErrInvalidText, at)
		}
		if sum != capacity {
			return fmt.Errorf("%w: measure %d sums to %v, want %v at %d", ErrInvalidText, len(measures)+1, sum, capacity, at)
		}
		measures = append(measures, Measure{Number: len(measures) + 1, Events: events})
		events, sum = nil, timing.Zero
		return nil
	}

	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case c == '|':
			if err := closeMeasure(i); err != nil {
				return nil, err
			}
			i++
			continue
		}
		start := i
		for i < len(text) && !strings.ContainsRune(" \t\r\n|", rune(text[i])) {
			i++
		}
		e, err := parseToken(text[start:i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v at %d", ErrInvalidText, err, start)
		}
		sum = sum.Add(e.Duration())
		if capacity.Less(sum) {
			return nil, fmt.Errorf("%w: measure %d overflows %v at %d", ErrInvalidText, len(measures)+1, capacity, start)
		}
		events = append(events, e)
	}
	if err := closeMeasure(len(text)); err != nil {
		return nil, err
	}
	return measures, nil
}

func parseToken(tok string) (Event, error) {
	e := Event{Kind: Note}
	if rest, ok := strings.CutPrefix(tok, "r:"); ok {
		e.Kind = Rest
		tok = rest
	}
	if body, ok := strings.CutSuffix(tok, ">"); ok {
		if e.Kind == Rest {
			return Event{}, fmt.Errorf("accented rest %q", tok)
		}
		e.Accent = true
		tok = body
	}
	for _, v := range AllNoteValues() {
		if v.Code() == tok {
			e.Value = v
			return e, nil
		}
	}
	return Event{}, fmt.Errorf("unknown value %q", tok)
}
