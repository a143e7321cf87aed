package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind distinguishes evaluations made with and without a curriculum template.
type Kind string

const (
	KindBasic    Kind = "basic"
	KindTemplate Kind = "template"
)

const (
	// DefaultScore is shown for any score the model left out.
	DefaultScore = 5.0
	// MaxSuggestions caps the suggestions shown to a student.
	MaxSuggestions = 3
)

// Scores holds the basic 1-10 scores. Nil means the model omitted the field.
type Scores struct {
	Creativity    *float64
	Clarity       *float64
	MathRelevance *float64
	Feasibility   *float64
	Overall       *float64
}

// GradeAppropriateness states whether a prompt suits the template's grade.
type GradeAppropriateness struct {
	IsAppropriate bool   `json:"isAppropriate"`
	Reason        string `json:"reason"`
}

// Rubric holds the curriculum-specific part of a template evaluation.
type Rubric struct {
	ObjectiveAlignment       *float64
	AchievementStandardFit   *float64
	GuidelineCompliance      *float64
	AchievementLevelEstimate string
	GradeAppropriateness     *GradeAppropriateness
	CurriculumNotes          string
}

// Evaluation is the decoded result of an evaluation call. Rubric is set only
// when Kind is KindTemplate.
type Evaluation struct {
	Kind        Kind
	Scores      Scores
	Feedback    string
	Suggestions []string
	Rubric      *Rubric
}

// EstimateAchievementLevel maps an overall score onto the A-E scale.
func EstimateAchievementLevel(overall float64) string {
	switch {
	case overall >= 9:
		return "A"
	case overall >= 7:
		return "B"
	case overall >= 5:
		return "C"
	case overall >= 3:
		return "D"
	default:
		return "E"
	}
}

type wireScores struct {
	Creativity             *float64 `json:"creativity,omitempty"`
	Clarity                *float64 `json:"clarity,omitempty"`
	MathRelevance          *float64 `json:"mathRelevance,omitempty"`
	Feasibility            *float64 `json:"feasibility,omitempty"`
	ObjectiveAlignment     *float64 `json:"objectiveAlignment,omitempty"`
	AchievementStandardFit *float64 `json:"achievementStandardFit,omitempty"`
	GuidelineCompliance    *float64 `json:"guidelineCompliance,omitempty"`
	Overall                *float64 `json:"overall,omitempty"`
}

type wireEvaluation struct {
	Kind                     Kind                  `json:"kind"`
	Scores                   wireScores            `json:"scores"`
	Feedback                 string                `json:"feedback"`
	Suggestions              []string              `json:"suggestions"`
	AchievementLevelEstimate string                `json:"achievementLevelEstimate,omitempty"`
	GradeAppropriateness     *GradeAppropriateness `json:"gradeAppropriateness,omitempty"`
	CurriculumNotes          string                `json:"curriculumNotes,omitempty"`
}

// MarshalJSON writes the evaluation in its stored shape, leaving absent scores out.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	kind := e.Kind
	if kind == "" {
		kind = KindBasic
	}
	suggestions := e.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	wire := wireEvaluation{
		Kind: kind,
		Scores: wireScores{
			Creativity:    e.Scores.Creativity,
			Clarity:       e.Scores.Clarity,
			MathRelevance: e.Scores.MathRelevance,
			Feasibility:   e.Scores.Feasibility,
			Overall:       e.Scores.Overall,
		},
		Feedback:    e.Feedback,
		Suggestions: suggestions,
	}
	if e.Rubric != nil {
		wire.Scores.ObjectiveAlignment = e.Rubric.ObjectiveAlignment
		wire.Scores.AchievementStandardFit = e.Rubric.AchievementStandardFit
		wire.Scores.GuidelineCompliance = e.Rubric.GuidelineCompliance
		wire.AchievementLevelEstimate = e.Rubric.AchievementLevelEstimate
		wire.GradeAppropriateness = e.Rubric.GradeAppropriateness
		wire.CurriculumNotes = e.Rubric.CurriculumNotes
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes leniently so that stored or client-supplied payloads
// with missing or string-typed fields still load.
func (e *Evaluation) UnmarshalJSON(data []byte) error {
	parsed, err := decodeEvaluation(data, "")
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEvaluation recovers an evaluation from raw model output. Code fences and
// text around the first JSON object are ignored. Missing fields stay nil.
// When hint is KindTemplate the result carries a rubric and an achievement
// level derived from the overall score.
func ParseEvaluation(content string, hint Kind) (Evaluation, error) {
	object, ok := extractJSONObject(stripCodeFences(content))
	if !ok {
		return Evaluation{}, ErrMalformedResponse
	}
	return decodeEvaluation([]byte(object), hint)
}

func decodeEvaluation(data []byte, hint Kind) (Evaluation, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if doc == nil {
		return Evaluation{}, ErrMalformedResponse
	}

	scores, _ := doc["scores"].(map[string]any)
	if scores == nil {
		scores = doc
	}

	evaluation := Evaluation{
		Kind: KindBasic,
		Scores: Scores{
			Creativity:    numberField(scores, "creativity"),
			Clarity:       numberField(scores, "clarity"),
			MathRelevance: numberField(scores, "mathRelevance"),
			Feasibility:   numberField(scores, "feasibility"),
			Overall:       numberField(scores, "overall"),
		},
		Feedback:    stringField(doc, "feedback"),
		Suggestions: stringsField(doc, "suggestions"),
	}

	rubric := Rubric{
		ObjectiveAlignment:       numberField(scores, "objectiveAlignment"),
		AchievementStandardFit:   numberField(scores, "achievementStandardFit"),
		GuidelineCompliance:      numberField(scores, "guidelineCompliance"),
		AchievementLevelEstimate: strings.ToUpper(stringField(doc, "achievementLevelEstimate")),
		GradeAppropriateness:     gradeField(doc, "gradeAppropriateness"),
		CurriculumNotes:          stringField(doc, "curriculumNotes"),
	}

	declared := Kind(stringField(doc, "kind"))
	if hint == KindTemplate || declared == KindTemplate || rubric.present() {
		if hint == KindTemplate && evaluation.Scores.Overall != nil {
			rubric.AchievementLevelEstimate = EstimateAchievementLevel(*evaluation.Scores.Overall)
		}
		evaluation.Kind = KindTemplate
		evaluation.Rubric = &rubric
	}

	return evaluation, nil
}

func (r Rubric) present() bool {
	return r.ObjectiveAlignment != nil || r.AchievementStandardFit != nil || r.GuidelineCompliance != nil ||
		r.AchievementLevelEstimate != "" || r.GradeAppropriateness != nil || r.CurriculumNotes != ""
}

// numberField reads a score. Non-finite values are treated as absent since
// they cannot be stored as JSON.
func numberField(doc map[string]any, key string) *float64 {
	var value float64
	switch v := doc[key].(type) {
	case float64:
		value = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		value = parsed
	default:
		return nil
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}

func stringField(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func stringsField(doc map[string]any, key string) []string {
	result := []string{}
	switch v := doc[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				result = append(result, strings.TrimSpace(s))
			}
		}
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func gradeField(doc map[string]any, key string) *GradeAppropriateness {
	raw, ok := doc[key].(map[string]any)
	if !ok {
		return nil
	}
	grade := &GradeAppropriateness{Reason: stringField(raw, "reason")}
	switch v := raw["isAppropriate"].(type) {
	case bool:
		grade.IsAppropriate = v
	case string:
		grade.IsAppropriate = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return grade
}
