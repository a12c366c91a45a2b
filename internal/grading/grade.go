package grading

import (
	"strings"

	"github.com/pavelanni/gradebook/internal/model"
)

// ExamTypeOther is recorded for assignment types outside the known set.
const ExamTypeOther = "OTHER"

// gradeEpsilon absorbs float error so exact boundary percentages such as
// 18.4/23 reach their threshold.
const gradeEpsilon = 1e-9

var gradeThresholds = []struct {
	min   float64
	grade string
}{
	{80, "A"},
	{70, "B"},
	{60, "C"},
	{50, "D"},
	{40, "E"},
}

// ComputeGrade maps score/maxScore to a letter. The thresholds are fixed and
// independent of any school-configured grade scale. A non-positive maxScore
// yields F.
func ComputeGrade(score, maxScore float64) string {
	if maxScore <= 0 {
		return "F"
	}
	pct := score / maxScore * 100
	for _, t := range gradeThresholds {
		if pct >= t.min-gradeEpsilon {
			return t.grade
		}
	}
	return "F"
}

// ExamTypeFor maps an assignment type to the exam type its results are filed under.
func ExamTypeFor(t model.AssignmentType) string {
	switch t {
	case model.AssignmentHomework, model.AssignmentClasswork, model.AssignmentTest,
		model.AssignmentQuiz, model.AssignmentExam:
		return string(t)
	default:
		return ExamTypeOther
	}
}

// answersMatch compares answers ignoring case and surrounding whitespace.
func answersMatch(given, correct *string) bool {
	if given == nil || correct == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*given), strings.TrimSpace(*correct))
}

// scoreObjective grades one objective response all-or-nothing.
func scoreObjective(r model.QuestionResponse, q model.Question) model.QuestionResponse {
	ok := answersMatch(r.StudentAnswer, q.CorrectAnswer)
	score := 0.0
	if ok {
		score = q.Marks
	}
	r.IsCorrect = &ok
	r.TeacherScore = &score
	return r
}

// sumScores folds teacher scores, counting nil as zero.
func sumScores(rs []model.QuestionResponse) float64 {
	var total float64
	for _, r := range rs {
		if r.TeacherScore != nil {
			total += *r.TeacherScore
		}
	}
	return total
}
