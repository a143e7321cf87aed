package ai

import (
	"fmt"
	"strings"
)

const basicScoreFormat = `{
  "scores": {
    "creativity": 숫자,
    "clarity": 숫자,
    "mathRelevance": 숫자,
    "feasibility": 숫자,
    "overall": 숫자
  },
  "feedback": "피드백 문자열",
  "suggestions": ["제안1", "제안2", "제안3"]
}`

const templateScoreFormat = `{
  "scores": {
    "creativity": 숫자,
    "clarity": 숫자,
    "mathRelevance": 숫자,
    "feasibility": 숫자,
    "objectiveAlignment": 숫자,
    "achievementStandardFit": 숫자,
    "guidelineCompliance": 숫자,
    "overall": 숫자
  },
  "feedback": "피드백 문자열",
  "suggestions": ["제안1", "제안2", "제안3"],
  "gradeAppropriateness": {
    "isAppropriate": true,
    "reason": "적합성 설명"
  },
  "curriculumNotes": "교육과정 연계 설명"
}`

func buildEvaluationPrompt(input EvaluationInput) string {
	if input.Template != nil {
		return buildTemplateEvaluationPrompt(input)
	}

	b := strings.Builder{}
	b.WriteString("당신은 수학 교육 전문가입니다. 학생이 수학 수업 후 만들고 싶은 인터랙티브 콘텐츠에 대해 작성한 프롬프트를 평가해주세요.\n\n")
	writeSubject(&b, input)
	b.WriteString("다음 기준으로 1-10점 척도로 평가하고, JSON 형식으로 응답해주세요:\n")
	b.WriteString("1. creativity (창의성): 아이디어가 독창적이고 흥미로운가?\n")
	b.WriteString("2. clarity (명확성): 프롬프트가 명확하고 이해하기 쉬운가?\n")
	b.WriteString("3. mathRelevance (수학 관련성): 수학 개념과 잘 연결되어 있는가?\n")
	b.WriteString("4. feasibility (실현 가능성): 실제로 구현 가능한 콘텐츠인가?\n")
	b.WriteString("5. overall (종합 점수): 전체적인 평가 점수\n\n")
	b.WriteString("또한 feedback(2-3문장)과 suggestions(최대 3개)를 포함해주세요.\n\n")
	b.WriteString("응답 형식:\n")
	b.WriteString(basicScoreFormat)
	b.WriteString("\n\nJSON만 응답해주세요.")
	return b.String()
}

func buildTemplateEvaluationPrompt(input EvaluationInput) string {
	t := input.Template
	b := strings.Builder{}
	b.WriteString("당신은 중학교 수학 교육 전문가입니다. 2022 개정 교육과정에 따라 학생의 프로젝트 프롬프트를 평가합니다.\n\n")

	b.WriteString("[평가 컨텍스트]\n")
	fmt.Fprintf(&b, "- 학생 학년: 중학교 %d학년\n", t.Grade)
	fmt.Fprintf(&b, "- 수학 영역: %s\n", t.DomainLabel)
	if t.UnitName != "" {
		fmt.Fprintf(&b, "- 단원: %s\n", t.UnitName)
	}
	if t.AchievementStandardCode != "" {
		fmt.Fprintf(&b, "- 성취기준 코드: %s\n", t.AchievementStandardCode)
	}
	fmt.Fprintf(&b, "- 성취기준: %s\n", t.AchievementStandard)
	fmt.Fprintf(&b, "- 기대 성취수준: %s등급\n\n", t.ExpectedLevel)

	b.WriteString("[학습목표]\n")
	if len(t.LearningObjectives) == 0 {
		b.WriteString("(학습목표 없음)\n")
	}
	for i, objective := range t.LearningObjectives {
		fmt.Fprintf(&b, "%d. %s\n", i+1, objective)
	}

	b.WriteString("\n[교사 기본지침]\n")
	b.WriteString(t.Guidelines)
	b.WriteString("\n")
	if t.AIRestrictions != "" {
		b.WriteString("\n[AI 피드백 제한사항]\n")
		b.WriteString(t.AIRestrictions)
		b.WriteString("\n")
	}

	b.WriteString("\n[추가 제한사항]\n")
	fmt.Fprintf(&b, "- 중학교 %d학년 수준을 벗어나는 고급 수학 개념은 언급하지 마세요\n", t.Grade)
	b.WriteString("- 해당 학년에서 아직 배우지 않은 내용은 피드백에서 제외하세요\n")
	b.WriteString("- 2022 개정 교육과정 범위 내에서만 피드백하세요\n\n")

	b.WriteString("[평가 대상]\n")
	writeSubject(&b, input)

	b.WriteString("다음 기준으로 1-10점 척도로 평가하고, JSON 형식으로 응답해주세요:\n")
	b.WriteString("creativity, clarity, mathRelevance, feasibility, objectiveAlignment, achievementStandardFit, guidelineCompliance, overall\n\n")
	fmt.Fprintf(&b, "feedback은 중%d 학생 수준으로 2-3문장, suggestions는 최대 3개로 작성하고 gradeAppropriateness와 curriculumNotes를 포함해주세요.\n\n", t.Grade)
	b.WriteString("응답 형식:\n")
	b.WriteString(templateScoreFormat)
	b.WriteString("\n\nJSON만 응답해주세요.")
	return b.String()
}

func writeSubject(b *strings.Builder, input EvaluationInput) {
	fmt.Fprintf(b, "프로젝트 제목: %s\n\n", input.Title)
	b.WriteString("학생의 프롬프트:\n")
	b.WriteString(input.Prompt)
	b.WriteString("\n\n")
	if len(input.ImageURLs) > 0 {
		fmt.Fprintf(b, "첨부된 이미지: %d개\n\n", len(input.ImageURLs))
	}
}

func buildGenerationPrompt(input GenerationInput) string {
	b := strings.Builder{}
	b.WriteString("당신은 수학 교육용 인터랙티브 웹 콘텐츠 개발 전문가입니다.\n\n")
	b.WriteString("학생이 다음 프로젝트를 요청했습니다:\n\n")
	fmt.Fprintf(&b, "프로젝트 제목: %s\n\n", input.Title)
	b.WriteString("학생의 요청:\n")
	b.WriteString(input.Prompt)
	b.WriteString("\n\n")
	if len(input.ImageURLs) > 0 {
		fmt.Fprintf(&b, "참고 이미지 URL: %s\n\n", strings.Join(input.ImageURLs, ", "))
	}
	b.WriteString("위 콘텐츠를 HTML 기반 인터랙티브 콘텐츠로 만들어주세요.\n\n")
	b.WriteString("요구사항:\n")
	b.WriteString("1. 완전히 독립적으로 실행 가능한 단일 HTML 파일로 작성\n")
	b.WriteString("2. CSS는 <style> 태그 내에, JavaScript는 <script> 태그 내에 포함\n")
	b.WriteString("3. 반응형 디자인 적용 (모바일/태블릿/데스크톱)\n")
	b.WriteString("4. 사용자 인터랙션 요소 포함 (버튼, 슬라이더, 입력 필드 등)\n")
	b.WriteString("5. 수학 개념을 효과적으로 전달할 수 있는 시각화\n")
	b.WriteString("6. 한국어로 작성\n")
	b.WriteString("7. 외부 라이브러리 사용 가능 (CDN 링크 사용)\n\n")
	b.WriteString("HTML 코드만 응답해주세요. 설명이나 마크다운 블록 없이 순수 HTML만 반환하세요.")
	return b.String()
}

func evaluationHint(input EvaluationInput) Kind {
	if input.Template != nil {
		return KindTemplate
	}
	return KindBasic
}
