package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/gradebook/internal/model"
)

// ExportExamResults returns export-ready exam results, optionally limited to one period.
func (s *Store) ExportExamResults(ctx context.Context, periodID *int64) ([]model.ResultRow, error) {
	query := `SELECT r.student_id, u.display_name AS student_name, cs.class_name, sj.name AS subject_name,
	                 p.name AS period_name, r.exam_type, r.score, r.max_score, r.grade, r.updated_at
	          FROM exam_results r
	          JOIN users u ON u.id = r.student_id
	          JOIN class_subjects cs ON cs.id = r.class_subject_id
	          JOIN subjects sj ON sj.id = cs.subject_id
	          JOIN academic_periods p ON p.id = r.academic_period_id`
	var args []any
	if periodID != nil {
		query += ` WHERE r.academic_period_id = ?`
		args = append(args, *periodID)
	}
	query += ` ORDER BY cs.class_name, sj.name, u.display_name, r.exam_type`

	var rows []model.ResultRow
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("export exam results: %w", err)
	}
	return rows, nil
}
