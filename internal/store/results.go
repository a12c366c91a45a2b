package store

import (
	"context"
	"time"

	"github.com/pavelanni/gradebook/internal/model"
)

const examResultColumns = `id, student_id, class_subject_id, academic_period_id, exam_type, score, max_score, grade, created_at, updated_at`

// UpsertExamResult inserts the result or updates score, max score and grade
// of the row with the same (student, class subject, period, exam type).
func (s *Store) UpsertExamResult(ctx context.Context, r model.ExamResult) (int64, error) {
	now := time.Now()
	return s.insert(ctx,
		`INSERT INTO exam_results (student_id, class_subject_id, academic_period_id, exam_type, score, max_score, grade, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (student_id, class_subject_id, academic_period_id, exam_type)
		 DO UPDATE SET score = excluded.score, max_score = excluded.max_score, grade = excluded.grade, updated_at = excluded.updated_at`,
		r.StudentID, r.ClassSubjectID, r.AcademicPeriodID, r.ExamType, r.Score, r.MaxScore, r.Grade, now, now,
	)
}

// GetExamResult returns the result for one key.
func (s *Store) GetExamResult(ctx context.Context, studentID, classSubjectID, periodID int64, examType string) (model.ExamResult, error) {
	var r model.ExamResult
	err := s.get(ctx, &r,
		`SELECT `+examResultColumns+` FROM exam_results
		 WHERE student_id = ? AND class_subject_id = ? AND academic_period_id = ? AND exam_type = ?`,
		studentID, classSubjectID, periodID, examType,
	)
	return r, err
}

// ListExamResultsForStudent returns all results of one student.
func (s *Store) ListExamResultsForStudent(ctx context.Context, studentID int64) ([]model.ExamResult, error) {
	var rs []model.ExamResult
	err := s.selectAll(ctx, &rs,
		`SELECT `+examResultColumns+` FROM exam_results WHERE student_id = ? ORDER BY id`, studentID,
	)
	return rs, err
}
