package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/store"
)

// CreateAssignmentInput describes a new draft assignment.
type CreateAssignmentInput struct {
	ClassSubjectID int64                `json:"class_subject_id" validate:"required,gt=0"`
	Title          string               `json:"title" validate:"required,max=200"`
	Description    string               `json:"description" validate:"max=5000"`
	Type           model.AssignmentType `json:"type" validate:"required,oneof=HOMEWORK CLASSWORK TEST QUIZ EXAM"`
	DueDate        *time.Time           `json:"due_date"`
	Duration       *int                 `json:"duration" validate:"omitempty,gt=0"`
	IsOnline       bool                 `json:"is_online"`
}

// AddQuestionInput describes a question to create and attach.
type AddQuestionInput struct {
	Type          model.QuestionType `json:"type" validate:"required,oneof=MCQ TRUE_FALSE SHORT_ANSWER ESSAY"`
	QuestionText  string             `json:"question_text" validate:"required,max=10000"`
	Options       []string           `json:"options" validate:"omitempty,dive,required"`
	CorrectAnswer *string            `json:"correct_answer"`
	Marks         float64            `json:"marks" validate:"gt=0"`
}

// CreateAssignment creates a draft assignment bound to period. The period is
// resolved by the caller once per request; a nil period means the school has
// none.
func (s *Service) CreateAssignment(ctx context.Context, caller *model.User, period *model.AcademicPeriod, in CreateAssignmentInput) (model.Assignment, error) {
	if err := requireTeacher(caller); err != nil {
		return model.Assignment{}, err
	}
	if err := s.check(in); err != nil {
		return model.Assignment{}, err
	}
	if period == nil {
		return model.Assignment{}, fail(ErrInvalidState, MsgNoCurrentPeriod)
	}

	cs, err := s.store.GetClassSubject(ctx, in.ClassSubjectID)
	if err != nil {
		return model.Assignment{}, notFound(err, MsgClassSubjectNotFound)
	}
	if cs.TeacherID != caller.ID {
		return model.Assignment{}, fail(ErrNotFound, MsgClassSubjectNotFound)
	}

	id, err := s.store.CreateAssignment(ctx, model.Assignment{
		ClassSubjectID:   cs.ID,
		AcademicPeriodID: period.ID,
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Type:             in.Type,
		DueDate:          in.DueDate,
		Duration:         in.Duration,
		IsOnline:         in.IsOnline,
		CreatedByID:      caller.ID,
	})
	if err != nil {
		return model.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	s.invalidate(cs.ID)
	slog.Info("created assignment", "id", id, "class_subject_id", cs.ID, "period_id", period.ID, "teacher_id", caller.ID)

	a, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("reload assignment %d: %w", id, err)
	}
	return a, nil
}

// validateQuestion checks the answer key against the question kind.
func validateQuestion(in AddQuestionInput) error {
	kind, err := in.Type.Kind()
	if err != nil {
		return &Error{Kind: ErrInvalidInput, MessageID: MsgInvalidInput, Err: err}
	}
	if _, ok := kind.(model.Objective); !ok {
		return nil
	}
	if in.CorrectAnswer == nil || strings.TrimSpace(*in.CorrectAnswer) == "" {
		return &Error{Kind: ErrInvalidInput, MessageID: MsgInvalidInput, Err: errors.New("objective question needs a correct answer")}
	}
	answer := strings.TrimSpace(*in.CorrectAnswer)
	switch in.Type {
	case model.QuestionMCQ:
		if len(in.Options) < 2 {
			return &Error{Kind: ErrInvalidInput, MessageID: MsgInvalidInput, Err: errors.New("multiple choice needs at least two options")}
		}
		if !slices.ContainsFunc(in.Options, func(o string) bool { return strings.EqualFold(strings.TrimSpace(o), answer) }) {
			return &Error{Kind: ErrInvalidInput, MessageID: MsgInvalidInput, Err: errors.New("correct answer is not one of the options")}
		}
	case model.QuestionTrueFalse:
		if !strings.EqualFold(answer, "true") && !strings.EqualFold(answer, "false") {
			return &Error{Kind: ErrInvalidInput, MessageID: MsgInvalidInput, Err: errors.New("true/false answer must be true or false")}
		}
	}
	return nil
}

// AddQuestion creates a question in the bank, appends it to the assignment
// and recomputes the assignment's total marks.
func (s *Service) AddQuestion(ctx context.Context, caller *model.User, assignmentID int64, in AddQuestionInput) (model.LinkedQuestion, error) {
	if err := requireTeacher(caller); err != nil {
		return model.LinkedQuestion{}, err
	}
	if err := s.check(in); err != nil {
		return model.LinkedQuestion{}, err
	}
	if err := validateQuestion(in); err != nil {
		return model.LinkedQuestion{}, err
	}

	var (
		out  model.LinkedQuestion
		csID int64
	)
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		a, err := ownedAssignment(ctx, tx, caller, assignmentID)
		if err != nil {
			return err
		}
		if a.IsPublished {
			return fail(ErrInvalidState, MsgAssignmentPublished)
		}
		cs, err := tx.GetClassSubject(ctx, a.ClassSubjectID)
		if err != nil {
			return fmt.Errorf("load class subject %d: %w", a.ClassSubjectID, err)
		}
		csID = cs.ID

		q := model.Question{
			SubjectID:     cs.SubjectID,
			Type:          in.Type,
			QuestionText:  in.QuestionText,
			Options:       in.Options,
			CorrectAnswer: in.CorrectAnswer,
			Marks:         in.Marks,
			CreatedByID:   caller.ID,
		}
		qID, err := tx.InsertQuestion(ctx, q)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		n, err := tx.CountLinks(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("count links: %w", err)
		}
		linkID, err := tx.LinkQuestion(ctx, a.ID, qID, n+1)
		if err != nil {
			return fmt.Errorf("link question: %w", err)
		}
		if err := recomputeTotalMarks(ctx, tx, a.ID); err != nil {
			return err
		}

		q.ID = qID
		out = model.LinkedQuestion{LinkID: linkID, Order: n + 1, Question: q}
		return nil
	})
	if err != nil {
		return model.LinkedQuestion{}, err
	}
	s.invalidate(csID)
	slog.Info("added question", "assignment_id", assignmentID, "question_id", out.ID, "order", out.Order, "marks", out.Marks)
	return out, nil
}

// RemoveQuestion detaches a question from an unpublished assignment and
// recomputes the total marks over what remains.
func (s *Service) RemoveQuestion(ctx context.Context, caller *model.User, assignmentQuestionID int64) error {
	if err := requireTeacher(caller); err != nil {
		return err
	}

	var csID int64
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		link, err := tx.GetAssignmentQuestion(ctx, assignmentQuestionID)
		if err != nil {
			return notFound(err, MsgQuestionNotFound)
		}
		a, err := ownedAssignment(ctx, tx, caller, link.AssignmentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fail(ErrNotFound, MsgQuestionNotFound)
			}
			return err
		}
		if a.IsPublished {
			return fail(ErrInvalidState, MsgAssignmentPublished)
		}
		csID = a.ClassSubjectID

		if err := tx.DeleteAssignmentQuestion(ctx, link.ID); err != nil {
			return fmt.Errorf("delete link %d: %w", link.ID, err)
		}
		if err := tx.RenumberLinks(ctx, a.ID); err != nil {
			return fmt.Errorf("renumber links: %w", err)
		}
		return recomputeTotalMarks(ctx, tx, a.ID)
	})
	if err != nil {
		return err
	}
	s.invalidate(csID)
	slog.Info("removed question", "link_id", assignmentQuestionID)
	return nil
}

func recomputeTotalMarks(ctx context.Context, tx *store.Store, assignmentID int64) error {
	total, err := tx.SumLinkedMarks(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("sum marks: %w", err)
	}
	if err := tx.SetTotalMarks(ctx, assignmentID, total); err != nil {
		return fmt.Errorf("set total marks: %w", err)
	}
	return nil
}

// Publish makes an assignment visible to students. It needs at least one
// question and cannot be undone. Publishing twice is a no-op.
func (s *Service) Publish(ctx context.Context, caller *model.User, assignmentID int64) (model.Assignment, error) {
	if err := requireTeacher(caller); err != nil {
		return model.Assignment{}, err
	}

	var a model.Assignment
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		var err error
		a, err = ownedAssignment(ctx, tx, caller, assignmentID)
		if err != nil {
			return err
		}
		if a.IsPublished {
			return nil
		}
		n, err := tx.CountLinks(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("count links: %w", err)
		}
		if n == 0 {
			return fail(ErrInvalidState, MsgNoQuestions)
		}
		if err := tx.SetPublished(ctx, a.ID); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		a.IsPublished = true
		return nil
	})
	if err != nil {
		return model.Assignment{}, err
	}
	s.invalidate(a.ClassSubjectID)
	slog.Info("published assignment", "id", a.ID, "total_marks", a.TotalMarks)
	return a, nil
}

// DeleteAssignment removes an assignment that nobody has submitted to yet,
// whether or not it was published.
func (s *Service) DeleteAssignment(ctx context.Context, caller *model.User, assignmentID int64) error {
	if err := requireTeacher(caller); err != nil {
		return err
	}

	var csID int64
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		a, err := ownedAssignment(ctx, tx, caller, assignmentID)
		if err != nil {
			return err
		}
		n, err := tx.CountSubmissions(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("count submissions: %w", err)
		}
		if n > 0 {
			return fail(ErrInvalidState, MsgHasSubmissions)
		}
		csID = a.ClassSubjectID
		return tx.DeleteAssignment(ctx, a.ID)
	})
	if err != nil {
		return err
	}
	s.invalidate(csID)
	slog.Info("deleted assignment", "id", assignmentID)
	return nil
}

// GetAssignment returns one of the caller's assignments with its questions.
func (s *Service) GetAssignment(ctx context.Context, caller *model.User, assignmentID int64) (*model.AssignmentView, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}
	if _, err := ownedAssignment(ctx, s.store, caller, assignmentID); err != nil {
		return nil, err
	}
	return s.store.GetAssignmentView(ctx, assignmentID)
}

// ListAssignments returns the assignment listing of a class subject the caller teaches.
func (s *Service) ListAssignments(ctx context.Context, caller *model.User, classSubjectID int64) ([]model.AssignmentSummary, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}
	cs, err := s.store.GetClassSubject(ctx, classSubjectID)
	if err != nil {
		return nil, notFound(err, MsgClassSubjectNotFound)
	}
	if cs.TeacherID != caller.ID {
		return nil, fail(ErrNotFound, MsgClassSubjectNotFound)
	}
	var gen uint64
	if s.listings != nil {
		rows, g, ok := s.listings.Get(cs.ID)
		if ok {
			return rows, nil
		}
		gen = g
	}
	rows, err := s.store.ListAssignmentSummaries(ctx, cs.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if s.listings != nil {
		s.listings.Set(cs.ID, gen, rows)
	}
	return rows, nil
}

// ListSubmissions returns the submissions of one of the caller's assignments.
func (s *Service) ListSubmissions(ctx context.Context, caller *model.User, assignmentID int64) ([]model.Submission, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}
	if _, err := ownedAssignment(ctx, s.store, caller, assignmentID); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(ctx, assignmentID)
}

// GetSubmission returns a submission of one of the caller's assignments.
func (s *Service) GetSubmission(ctx context.Context, caller *model.User, submissionID int64) (*model.SubmissionView, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}
	if _, _, err := ownedSubmission(ctx, s.store, caller, submissionID); err != nil {
		return nil, err
	}
	return s.store.GetSubmissionView(ctx, submissionID)
}
