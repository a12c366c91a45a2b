package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pavelanni/gradebook/internal/model"
)

const (
	submissionColumns = `id, assignment_id, student_id, submitted_at, is_late, is_graded, total_score, version`
	responseColumns   = `id, submission_id, question_id, student_answer, is_correct, teacher_score, feedback`
)

// CreateSubmission stores a submission together with its responses. This is
// the intake path used by submission capture and fixtures.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission, responses []model.QuestionResponse) (int64, error) {
	var id int64
	err := s.InTx(ctx, func(tx *Store) error {
		var err error
		id, err = tx.insert(ctx,
			`INSERT INTO assignment_submissions (assignment_id, student_id, submitted_at, is_late, is_graded, total_score, version)
			 VALUES (?, ?, ?, ?, FALSE, 0, 0)`,
			sub.AssignmentID, sub.StudentID, sub.SubmittedAt, sub.IsLate,
		)
		if err != nil {
			return err
		}
		for _, r := range responses {
			if _, err := tx.insert(ctx,
				`INSERT INTO question_responses (submission_id, question_id, student_answer, is_correct, teacher_score, feedback)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				id, r.QuestionID, r.StudentAnswer, r.IsCorrect, r.TeacherScore, r.Feedback,
			); err != nil {
				return fmt.Errorf("insert response for question %d: %w", r.QuestionID, err)
			}
		}
		return nil
	})
	return id, err
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id int64) (model.Submission, error) {
	var sub model.Submission
	err := s.get(ctx, &sub, `SELECT `+submissionColumns+` FROM assignment_submissions WHERE id = ?`, id)
	return sub, err
}

// LockSubmission bumps the submission version. Inside a transaction this
// takes the row lock, so concurrent recomputes of one submission serialize.
// Returns sql.ErrNoRows when the submission does not exist.
func (s *Store) LockSubmission(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `UPDATE assignment_submissions SET version = version + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSubmissions returns an assignment's submissions in intake order.
func (s *Store) ListSubmissions(ctx context.Context, assignmentID int64) ([]model.Submission, error) {
	var subs []model.Submission
	err := s.selectAll(ctx, &subs,
		`SELECT `+submissionColumns+` FROM assignment_submissions WHERE assignment_id = ? ORDER BY submitted_at, id`,
		assignmentID,
	)
	return subs, err
}

// CountSubmissions returns how many submissions an assignment has.
func (s *Store) CountSubmissions(ctx context.Context, assignmentID int64) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM assignment_submissions WHERE assignment_id = ?`, assignmentID)
	return n, err
}

// ListResponses returns a submission's responses.
func (s *Store) ListResponses(ctx context.Context, submissionID int64) ([]model.QuestionResponse, error) {
	var rs []model.QuestionResponse
	err := s.selectAll(ctx, &rs,
		`SELECT `+responseColumns+` FROM question_responses WHERE submission_id = ? ORDER BY id`, submissionID,
	)
	return rs, err
}

// GetResponse returns a response by ID.
func (s *Store) GetResponse(ctx context.Context, id int64) (model.QuestionResponse, error) {
	var r model.QuestionResponse
	err := s.get(ctx, &r, `SELECT `+responseColumns+` FROM question_responses WHERE id = ?`, id)
	return r, err
}

// UpdateResponseGrade writes the grading fields of a response.
func (s *Store) UpdateResponseGrade(ctx context.Context, r model.QuestionResponse) error {
	_, err := s.exec(ctx,
		`UPDATE question_responses SET is_correct = ?, teacher_score = ?, feedback = ? WHERE id = ?`,
		r.IsCorrect, r.TeacherScore, r.Feedback, r.ID,
	)
	return err
}

// SumResponseScores folds the teacher scores of a submission's responses,
// counting missing scores as zero.
func (s *Store) SumResponseScores(ctx context.Context, submissionID int64) (float64, error) {
	var total float64
	err := s.get(ctx, &total,
		`SELECT COALESCE(SUM(teacher_score), 0) FROM question_responses WHERE submission_id = ?`, submissionID,
	)
	return total, err
}

// SetSubmissionTotal persists a recomputed total without touching is_graded.
func (s *Store) SetSubmissionTotal(ctx context.Context, id int64, total float64) error {
	_, err := s.exec(ctx, `UPDATE assignment_submissions SET total_score = ? WHERE id = ?`, total, id)
	return err
}

// MarkSubmissionGraded persists the total and sets is_graded.
func (s *Store) MarkSubmissionGraded(ctx context.Context, id int64, total float64) error {
	_, err := s.exec(ctx,
		`UPDATE assignment_submissions SET total_score = ?, is_graded = TRUE WHERE id = ?`, total, id,
	)
	return err
}

// GetSubmissionView builds a submission with its assignment and responses.
func (s *Store) GetSubmissionView(ctx context.Context, id int64) (*model.SubmissionView, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := s.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return nil, err
	}
	rs, err := s.ListResponses(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]model.ResponseView, 0, len(rs))
	for _, r := range rs {
		q, err := s.GetQuestion(ctx, r.QuestionID)
		if err != nil {
			return nil, err
		}
		views = append(views, model.ResponseView{Response: r, Question: q})
	}
	return &model.SubmissionView{Submission: sub, Assignment: a, Responses: views}, nil
}
