package notation

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

type WorksheetFormat string

const (
	Standard        WorksheetFormat = "standard"
	BlankCompletion WorksheetFormat = "blankCompletion"
	Quiz            WorksheetFormat = "quiz"
)

var validVariants = []int{1, 2, 3, 4, 6, 8}

type WorksheetSettings struct {
	Format           WorksheetFormat `json:"format" yaml:"format"`
	IncludeAnswerKey bool            `json:"includeAnswerKey" yaml:"include_answer_key"`
	IncludeSyllables bool            `json:"includeSyllables" yaml:"include_syllables"`
	Title            string          `json:"title" yaml:"title"`
	IncludeNameField bool            `json:"includeNameField" yaml:"include_name_field"`
	IncludeDateField bool            `json:"includeDateField" yaml:"include_date_field"`
	Variants         int             `json:"variants" yaml:"variants"`
}

func DefaultWorksheetSettings() WorksheetSettings {
	return WorksheetSettings{
		Format:           Standard,
		IncludeAnswerKey: true,
		IncludeSyllables: true,
		Title:            "Rhythm Practice",
		IncludeNameField: true,
		IncludeDateField: true,
		Variants:         1,
	}
}

func (w WorksheetSettings) Validate() error {
	switch w.Format {
	case Standard, BlankCompletion, Quiz:
	default:
		return fmt.Errorf("%w: unknown worksheet format %q", pattern.ErrInvalidSettings, w.Format)
	}
	if !slices.Contains(validVariants, w.Variants) {
		return fmt.Errorf("%w: variants %d not in %v", pattern.ErrInvalidSettings, w.Variants, validVariants)
	}
	return nil
}

func FormatName(f WorksheetFormat) string {
	switch f {
	case Standard:
		return "Standard Practice"
	case BlankCompletion:
		return "Fill in the Blank"
	case Quiz:
		return "Quiz Format"
	}
	return string(f)
}

// Document is a print-ready description of a worksheet. A PDF or HTML
// renderer draws it; nothing here knows about pages or fonts.
type Document struct {
	Title          string     `json:"title" yaml:"title"`
	Subtitle       string     `json:"subtitle" yaml:"subtitle"`
	NameField      bool       `json:"nameField" yaml:"name_field"`
	DateField      bool       `json:"dateField" yaml:"date_field"`
	CountingSystem string     `json:"countingSystem,omitempty" yaml:"counting_system,omitempty"`
	Exercises      []Exercise `json:"exercises" yaml:"exercises"`
	AnswerKey      []Exercise `json:"answerKey,omitempty" yaml:"answer_key,omitempty"`
}

type Exercise struct {
	Number        int            `json:"number" yaml:"number"`
	TimeSignature string         `json:"timeSignature" yaml:"time_signature"`
	Tempo         int            `json:"tempo" yaml:"tempo"`
	Measures      []MeasureBlock `json:"measures" yaml:"measures"`
}

// MeasureBlock is one measure box. Blank boxes carry no tokens.
type MeasureBlock struct {
	Number int           `json:"number" yaml:"number"`
	Blank  bool          `json:"blank,omitempty" yaml:"blank,omitempty"`
	Text   string        `json:"text,omitempty" yaml:"text,omitempty"`
	Tokens []RenderToken `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// ExerciseInput is one pattern placed on a worksheet. Blank lists 0-based
// measure indexes to leave empty.
type ExerciseInput struct {
	Pattern *pattern.Pattern
	Blank   []int
}

// ToPrintable lays out a single pattern as a one-exercise document.
func ToPrintable(p *pattern.Pattern, ws WorksheetSettings) (Document, error) {
	return BuildDocument(ws, p.Settings, []ExerciseInput{{Pattern: p}})
}

// BuildDocument lays out several exercises. The answer key repeats every
// exercise in full with syllables.
func BuildDocument(ws WorksheetSettings, rs pattern.Settings, inputs []ExerciseInput) (Document, error) {
	if ws.Format == "" {
		ws.Format = Standard
	}
	doc := Document{
		Title:     ws.Title,
		Subtitle:  Subtitle(rs, ws),
		NameField: ws.IncludeNameField,
		DateField: ws.IncludeDateField,
	}
	if ws.IncludeSyllables && rs.CountingSystem != pattern.NoCount {
		doc.CountingSystem = CountingSystemName(rs.CountingSystem)
	}
	for i, in := range inputs {
		if err := in.Pattern.Validate(); err != nil {
			return Document{}, fmt.Errorf("exercise %d: %w", i+1, err)
		}
		system := pattern.NoCount
		if ws.IncludeSyllables {
			system = rs.CountingSystem
		}
		doc.Exercises = append(doc.Exercises, exercise(i+1, in.Pattern, system, in.Blank))
		if ws.IncludeAnswerKey {
			doc.AnswerKey = append(doc.AnswerKey, exercise(i+1, in.Pattern, rs.CountingSystem, nil))
		}
	}
	return doc, nil
}

func exercise(n int, p *pattern.Pattern, system pattern.CountingSystem, blank []int) Exercise {
	ex := Exercise{
		Number:        n,
		TimeSignature: p.Signature.String(),
		Tempo:         p.Settings.Tempo,
	}
	for i, m := range p.Measures {
		if slices.Contains(blank, i) {
			ex.Measures = append(ex.Measures, MeasureBlock{Number: m.Number, Blank: true})
			continue
		}
		ex.Measures = append(ex.Measures, MeasureBlock{
			Number: m.Number,
			Text:   pattern.FormatMeasure(m.Events),
			Tokens: MeasureTokens(p.Signature, m, system),
		})
	}
	return ex
}

// Subtitle reads like "Time: 4/4 | Tempo: 80 BPM | (Quiz)".
func Subtitle(rs pattern.Settings, ws WorksheetSettings) string {
	parts := []string{
		"Time: " + rs.TimeSignature.String(),
		fmt.Sprintf("Tempo: %d BPM", rs.Tempo),
	}
	switch ws.Format {
	case BlankCompletion:
		parts = append(parts, "(Fill in the blank measures)")
	case Quiz:
		parts = append(parts, "(Quiz)")
	}
	return strings.Join(parts, " | ")
}

func (d Document) YAML() ([]byte, error) { return yaml.Marshal(d) }

func (d Document) JSON() ([]byte, error) { return json.MarshalIndent(d, "", "  ") }
