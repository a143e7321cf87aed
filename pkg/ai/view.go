package ai

// ScoreView is a score set with defaults applied.
type ScoreView struct {
	Creativity    float64 `json:"creativity"`
	Clarity       float64 `json:"clarity"`
	MathRelevance float64 `json:"mathRelevance"`
	Feasibility   float64 `json:"feasibility"`
	Overall       float64 `json:"overall"`
}

// RubricView is the template part of an evaluation with defaults applied.
type RubricView struct {
	ObjectiveAlignment       float64               `json:"objectiveAlignment"`
	AchievementStandardFit   float64               `json:"achievementStandardFit"`
	GuidelineCompliance      float64               `json:"guidelineCompliance"`
	AchievementLevelEstimate string                `json:"achievementLevelEstimate,omitempty"`
	GradeAppropriateness     *GradeAppropriateness `json:"gradeAppropriateness,omitempty"`
	CurriculumNotes          string                `json:"curriculumNotes,omitempty"`
}

// EvaluationView is what clients display.
type EvaluationView struct {
	Kind        Kind        `json:"kind"`
	Scores      ScoreView   `json:"scores"`
	Feedback    string      `json:"feedback"`
	Suggestions []string    `json:"suggestions"`
	Rubric      *RubricView `json:"rubric,omitempty"`
}

// View applies display defaults: missing scores render as DefaultScore and
// at most MaxSuggestions suggestions are kept.
func (e Evaluation) View() EvaluationView {
	kind := e.Kind
	if kind == "" {
		kind = KindBasic
	}

	suggestions := make([]string, 0, MaxSuggestions)
	for _, suggestion := range e.Suggestions {
		if len(suggestions) == MaxSuggestions {
			break
		}
		suggestions = append(suggestions, suggestion)
	}

	view := EvaluationView{
		Kind: kind,
		Scores: ScoreView{
			Creativity:    scoreOrDefault(e.Scores.Creativity),
			Clarity:       scoreOrDefault(e.Scores.Clarity),
			MathRelevance: scoreOrDefault(e.Scores.MathRelevance),
			Feasibility:   scoreOrDefault(e.Scores.Feasibility),
			Overall:       scoreOrDefault(e.Scores.Overall),
		},
		Feedback:    e.Feedback,
		Suggestions: suggestions,
	}

	if e.Rubric != nil {
		view.Rubric = &RubricView{
			ObjectiveAlignment:       scoreOrDefault(e.Rubric.ObjectiveAlignment),
			AchievementStandardFit:   scoreOrDefault(e.Rubric.AchievementStandardFit),
			GuidelineCompliance:      scoreOrDefault(e.Rubric.GuidelineCompliance),
			AchievementLevelEstimate: e.Rubric.AchievementLevelEstimate,
			GradeAppropriateness:     e.Rubric.GradeAppropriateness,
			CurriculumNotes:          e.Rubric.CurriculumNotes,
		}
	}

	return view
}

func scoreOrDefault(score *float64) float64 {
	if score == nil {
		return DefaultScore
	}
	return *score
}
