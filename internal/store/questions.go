package store

import (
	"context"
	"time"

	"github.com/pavelanni/gradebook/internal/model"
)

const questionColumns = `id, subject_id, type, question_text, options, correct_answer, marks, created_by_id, created_at`

// InsertQuestion stores a question in the bank.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO questions (subject_id, type, question_text, options, correct_answer, marks, created_by_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.SubjectID, q.Type, q.QuestionText, q.Options, q.CorrectAnswer, q.Marks, q.CreatedByID, time.Now(),
	)
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	var q model.Question
	err := s.get(ctx, &q, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	return q, err
}

// LinkQuestion attaches a question to an assignment at the given position.
func (s *Store) LinkQuestion(ctx context.Context, assignmentID, questionID int64, order int) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO assignment_questions (assignment_id, question_id, position) VALUES (?, ?, ?)`,
		assignmentID, questionID, order,
	)
}

// GetAssignmentQuestion returns a link by ID.
func (s *Store) GetAssignmentQuestion(ctx context.Context, id int64) (model.AssignmentQuestion, error) {
	var aq model.AssignmentQuestion
	err := s.get(ctx, &aq,
		`SELECT id, assignment_id, question_id, position FROM assignment_questions WHERE id = ?`, id,
	)
	return aq, err
}

// DeleteAssignmentQuestion removes a link. The question stays in the bank.
func (s *Store) DeleteAssignmentQuestion(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `DELETE FROM assignment_questions WHERE id = ?`, id)
	return err
}

// CountLinks returns the number of questions linked to an assignment.
func (s *Store) CountLinks(ctx context.Context, assignmentID int64) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM assignment_questions WHERE assignment_id = ?`, assignmentID)
	return n, err
}

// SumLinkedMarks returns the marks of all questions linked to an assignment.
func (s *Store) SumLinkedMarks(ctx context.Context, assignmentID int64) (float64, error) {
	var total float64
	err := s.get(ctx, &total,
		`SELECT COALESCE(SUM(q.marks), 0)
		 FROM assignment_questions aq
		 JOIN questions q ON q.id = aq.question_id
		 WHERE aq.assignment_id = ?`, assignmentID,
	)
	return total, err
}

// ListLinkedQuestions returns an assignment's questions in order.
func (s *Store) ListLinkedQuestions(ctx context.Context, assignmentID int64) ([]model.LinkedQuestion, error) {
	var qs []model.LinkedQuestion
	err := s.selectAll(ctx, &qs,
		`SELECT aq.id AS link_id, aq.position,
		        q.id, q.subject_id, q.type, q.question_text, q.options, q.correct_answer,
		        q.marks, q.created_by_id, q.created_at
		 FROM assignment_questions aq
		 JOIN questions q ON q.id = aq.question_id
		 WHERE aq.assignment_id = ?
		 ORDER BY aq.position, aq.id`, assignmentID,
	)
	return qs, err
}

// RenumberLinks rewrites link positions to 1..n keeping their relative order.
func (s *Store) RenumberLinks(ctx context.Context, assignmentID int64) error {
	var ids []int64
	if err := s.selectAll(ctx, &ids,
		`SELECT id FROM assignment_questions WHERE assignment_id = ? ORDER BY position, id`, assignmentID,
	); err != nil {
		return err
	}
	for i, id := range ids {
		if _, err := s.exec(ctx, `UPDATE assignment_questions SET position = ? WHERE id = ?`, i+1, id); err != nil {
			return err
		}
	}
	return nil
}
