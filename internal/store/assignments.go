package store

import (
	"context"
	"time"

	"github.com/pavelanni/gradebook/internal/model"
)

const assignmentColumns = `id, class_subject_id, academic_period_id, title, description, type, total_marks,
	due_date, duration, is_online, is_published, created_by_id, created_at, updated_at`

// CreateAssignment stores a new draft assignment with zero total marks.
func (s *Store) CreateAssignment(ctx context.Context, a model.Assignment) (int64, error) {
	now := time.Now()
	return s.insert(ctx,
		`INSERT INTO assignments (class_subject_id, academic_period_id, title, description, type, total_marks,
			due_date, duration, is_online, is_published, created_by_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, FALSE, ?, ?, ?)`,
		a.ClassSubjectID, a.AcademicPeriodID, a.Title, a.Description, a.Type,
		a.DueDate, a.Duration, a.IsOnline, a.CreatedByID, now, now,
	)
}

// GetAssignment returns an assignment by ID.
func (s *Store) GetAssignment(ctx context.Context, id int64) (model.Assignment, error) {
	var a model.Assignment
	err := s.get(ctx, &a, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	return a, err
}

// SetTotalMarks persists a recomputed total.
func (s *Store) SetTotalMarks(ctx context.Context, id int64, total float64) error {
	_, err := s.exec(ctx,
		`UPDATE assignments SET total_marks = ?, updated_at = ? WHERE id = ?`, total, time.Now(), id,
	)
	return err
}

// SetPublished marks an assignment published. There is no way back.
func (s *Store) SetPublished(ctx context.Context, id int64) error {
	_, err := s.exec(ctx,
		`UPDATE assignments SET is_published = TRUE, updated_at = ? WHERE id = ?`, time.Now(), id,
	)
	return err
}

// DeleteAssignment removes an assignment and its question links.
func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx, `DELETE FROM assignment_questions WHERE assignment_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.exec(ctx, `DELETE FROM assignments WHERE id = ?`, id)
		return err
	})
}

// ListAssignmentSummaries returns the assignments of a class subject, newest first.
func (s *Store) ListAssignmentSummaries(ctx context.Context, classSubjectID int64) ([]model.AssignmentSummary, error) {
	var out []model.AssignmentSummary
	err := s.selectAll(ctx, &out,
		`SELECT a.id, a.class_subject_id, a.academic_period_id, a.title, a.description, a.type, a.total_marks,
		        a.due_date, a.duration, a.is_online, a.is_published, a.created_by_id, a.created_at, a.updated_at,
		        (SELECT COUNT(*) FROM assignment_questions aq WHERE aq.assignment_id = a.id) AS question_count,
		        (SELECT COUNT(*) FROM assignment_submissions sb WHERE sb.assignment_id = a.id) AS submission_count,
		        (SELECT COUNT(*) FROM assignment_submissions sb WHERE sb.assignment_id = a.id AND sb.is_graded = TRUE) AS graded_count
		 FROM assignments a
		 WHERE a.class_subject_id = ?
		 ORDER BY a.id DESC`, classSubjectID,
	)
	return out, err
}

// GetAssignmentView builds an assignment with its ordered questions.
func (s *Store) GetAssignmentView(ctx context.Context, id int64) (*model.AssignmentView, error) {
	a, err := s.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	qs, err := s.ListLinkedQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.CountSubmissions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.AssignmentView{Assignment: a, Questions: qs, SubmissionCount: n}, nil
}
