package grading

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/store"
)

// Outcome is the state of a submission after a grading or publishing pass.
type Outcome struct {
	Submission model.Submission `json:"submission"`
	Result     model.ExamResult `json:"exam_result"`
}

// ResponseOutcome is the state after a single response was scored.
type ResponseOutcome struct {
	Response   model.QuestionResponse `json:"response"`
	Submission model.Submission       `json:"submission"`
}

// GradeSubmission auto-grades the objective responses of a submission,
// keeps whatever scores subjective responses already carry, marks the
// submission graded and files the exam result. Running it again on
// unchanged data gives the same scores.
func (s *Service) GradeSubmission(ctx context.Context, caller *model.User, submissionID int64) (*Outcome, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}

	var out Outcome
	var csID int64
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		sub, a, err := ownedSubmission(ctx, tx, caller, submissionID)
		if err != nil {
			return err
		}
		if err := tx.LockSubmission(ctx, sub.ID); err != nil {
			return notFound(err, MsgSubmissionNotFound)
		}
		csID = a.ClassSubjectID

		linked, err := tx.ListLinkedQuestions(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		byID := make(map[int64]model.Question, len(linked))
		for _, lq := range linked {
			byID[lq.ID] = lq.Question
		}

		responses, err := tx.ListResponses(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("load responses: %w", err)
		}
		autoGraded := 0
		for i, r := range responses {
			q, ok := byID[r.QuestionID]
			if !ok {
				continue
			}
			kind, err := q.Type.Kind()
			if err != nil {
				return fmt.Errorf("question %d: %w", q.ID, err)
			}
			switch kind.(type) {
			case model.Objective:
				responses[i] = scoreObjective(r, q)
				if err := tx.UpdateResponseGrade(ctx, responses[i]); err != nil {
					return fmt.Errorf("update response %d: %w", r.ID, err)
				}
				autoGraded++
			case model.Subjective:
				// Scored by hand; the existing teacher score is folded in below.
			}
		}

		total := sumScores(responses)
		if err := tx.MarkSubmissionGraded(ctx, sub.ID, total); err != nil {
			return fmt.Errorf("mark graded: %w", err)
		}
		res, err := fileResult(ctx, tx, sub.StudentID, a, total)
		if err != nil {
			return err
		}
		out.Result = res
		out.Submission, err = tx.GetSubmission(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("reload submission: %w", err)
		}
		slog.Info("graded submission",
			"submission_id", sub.ID,
			"auto_graded", autoGraded,
			"total_score", total,
			"max_score", a.TotalMarks,
			"grade", res.Grade,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(csID)
	return &out, nil
}

// GradeEssayQuestion records a hand-assigned score for a subjective response
// and recomputes the submission total. It does not change is_graded.
func (s *Service) GradeEssayQuestion(ctx context.Context, caller *model.User, responseID int64, score float64, feedback *string) (*ResponseOutcome, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}

	var out ResponseOutcome
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		r, q, err := lockedResponse(ctx, tx, caller, responseID)
		if err != nil {
			return err
		}
		kind, err := q.Type.Kind()
		if err != nil {
			return fmt.Errorf("question %d: %w", q.ID, err)
		}
		if _, ok := kind.(model.Subjective); !ok {
			return fail(ErrInvalidState, MsgNotSubjective)
		}
		if err := checkScore(score, q.Marks); err != nil {
			return err
		}

		r.TeacherScore = &score
		r.Feedback = feedback
		out, err = writeResponse(ctx, tx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("graded response", "response_id", responseID, "score", score, "submission_total", out.Submission.TotalScore)
	return &out, nil
}

// CorrectObjectiveQuestion overrides correctness, score and feedback of a
// response as given, without consulting the answer key, and recomputes the
// submission total.
func (s *Service) CorrectObjectiveQuestion(ctx context.Context, caller *model.User, responseID int64, isCorrect bool, score float64, feedback *string) (*ResponseOutcome, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}

	var out ResponseOutcome
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		r, q, err := lockedResponse(ctx, tx, caller, responseID)
		if err != nil {
			return err
		}
		if err := checkScore(score, q.Marks); err != nil {
			return err
		}

		r.IsCorrect = &isCorrect
		r.TeacherScore = &score
		r.Feedback = feedback
		out, err = writeResponse(ctx, tx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("corrected response", "response_id", responseID, "is_correct", isCorrect, "score", score, "submission_total", out.Submission.TotalScore)
	return &out, nil
}

// PublishSubmissionResults seals a submission once hand grading and
// corrections are done: it refolds the total from the responses, marks the
// submission graded and files the exam result. It is safe to call repeatedly.
func (s *Service) PublishSubmissionResults(ctx context.Context, caller *model.User, submissionID int64) (*Outcome, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}

	var out Outcome
	var csID int64
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		sub, a, err := ownedSubmission(ctx, tx, caller, submissionID)
		if err != nil {
			return err
		}
		if err := tx.LockSubmission(ctx, sub.ID); err != nil {
			return notFound(err, MsgSubmissionNotFound)
		}
		csID = a.ClassSubjectID

		total, err := tx.SumResponseScores(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("sum scores: %w", err)
		}
		if err := tx.MarkSubmissionGraded(ctx, sub.ID, total); err != nil {
			return fmt.Errorf("mark graded: %w", err)
		}
		out.Result, err = fileResult(ctx, tx, sub.StudentID, a, total)
		if err != nil {
			return err
		}
		out.Submission, err = tx.GetSubmission(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("reload submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(csID)
	slog.Info("published submission results",
		"submission_id", submissionID,
		"total_score", out.Submission.TotalScore,
		"grade", out.Result.Grade,
	)
	return &out, nil
}

// SuggestEssayScore asks the assistant to score a subjective response. The
// suggestion is returned to the teacher and nothing is stored.
func (s *Service) SuggestEssayScore(ctx context.Context, caller *model.User, responseID int64) (*Suggestion, error) {
	if err := requireTeacher(caller); err != nil {
		return nil, err
	}
	if s.assistant == nil {
		return nil, fail(ErrInvalidState, MsgAssistantDisabled)
	}
	r, _, err := ownedResponse(ctx, s.store, caller, responseID)
	if err != nil {
		return nil, err
	}
	q, err := s.store.GetQuestion(ctx, r.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("load question %d: %w", r.QuestionID, err)
	}
	kind, err := q.Type.Kind()
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", q.ID, err)
	}
	if _, ok := kind.(model.Subjective); !ok {
		return nil, fail(ErrInvalidState, MsgNotSubjective)
	}

	var answer string
	if r.StudentAnswer != nil {
		answer = *r.StudentAnswer
	}
	sg, err := s.assistant.SuggestScore(ctx, q, answer)
	if err != nil {
		return nil, fmt.Errorf("suggest score: %w", err)
	}
	sg.MaxScore = q.Marks
	sg.Score = math.Max(0, math.Min(sg.Score, q.Marks))
	return sg, nil
}

// lockedResponse checks ownership, locks the parent submission and returns
// the response as seen under the lock along with its question.
func lockedResponse(ctx context.Context, tx *store.Store, caller *model.User, responseID int64) (model.QuestionResponse, model.Question, error) {
	r, _, err := ownedResponse(ctx, tx, caller, responseID)
	if err != nil {
		return r, model.Question{}, err
	}
	if err := tx.LockSubmission(ctx, r.SubmissionID); err != nil {
		return r, model.Question{}, notFound(err, MsgResponseNotFound)
	}
	r, err = tx.GetResponse(ctx, responseID)
	if err != nil {
		return r, model.Question{}, notFound(err, MsgResponseNotFound)
	}
	q, err := tx.GetQuestion(ctx, r.QuestionID)
	if err != nil {
		return r, q, fmt.Errorf("load question %d: %w", r.QuestionID, err)
	}
	return r, q, nil
}

// writeResponse stores a response and refolds its submission total.
func writeResponse(ctx context.Context, tx *store.Store, r model.QuestionResponse) (ResponseOutcome, error) {
	if err := tx.UpdateResponseGrade(ctx, r); err != nil {
		return ResponseOutcome{}, fmt.Errorf("update response %d: %w", r.ID, err)
	}
	total, err := tx.SumResponseScores(ctx, r.SubmissionID)
	if err != nil {
		return ResponseOutcome{}, fmt.Errorf("sum scores: %w", err)
	}
	if err := tx.SetSubmissionTotal(ctx, r.SubmissionID, total); err != nil {
		return ResponseOutcome{}, fmt.Errorf("set total: %w", err)
	}
	sub, err := tx.GetSubmission(ctx, r.SubmissionID)
	if err != nil {
		return ResponseOutcome{}, fmt.Errorf("reload submission: %w", err)
	}
	return ResponseOutcome{Response: r, Submission: sub}, nil
}

// fileResult upserts the exam result for the assignment's period and type.
func fileResult(ctx context.Context, tx *store.Store, studentID int64, a model.Assignment, total float64) (model.ExamResult, error) {
	examType := ExamTypeFor(a.Type)
	_, err := tx.UpsertExamResult(ctx, model.ExamResult{
		StudentID:        studentID,
		ClassSubjectID:   a.ClassSubjectID,
		AcademicPeriodID: a.AcademicPeriodID,
		ExamType:         examType,
		Score:            total,
		MaxScore:         a.TotalMarks,
		Grade:            ComputeGrade(total, a.TotalMarks),
	})
	if err != nil {
		return model.ExamResult{}, fmt.Errorf("upsert exam result: %w", err)
	}
	res, err := tx.GetExamResult(ctx, studentID, a.ClassSubjectID, a.AcademicPeriodID, examType)
	if err != nil {
		return model.ExamResult{}, fmt.Errorf("reload exam result: %w", err)
	}
	return res, nil
}

func checkScore(score, marks float64) error {
	if math.IsNaN(score) || score < 0 || score > marks {
		return &Error{Kind: ErrInvalidInput, MessageID: MsgScoreOutOfRange, Data: map[string]any{"Max": marks}}
	}
	return nil
}
