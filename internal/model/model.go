package model

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	SchoolID     int64     `db:"school_id" json:"school_id"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// AcademicYear is a school year; exactly one per school is current.
type AcademicYear struct {
	ID        int64     `db:"id" json:"id"`
	SchoolID  int64     `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}

// AcademicPeriod is a term, semester or quarter inside an academic year.
type AcademicPeriod struct {
	ID             int64     `db:"id" json:"id"`
	AcademicYearID int64     `db:"academic_year_id" json:"academic_year_id"`
	Name           string    `db:"name" json:"name"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
}

// Covers reports whether t falls inside the period, both ends inclusive.
func (p AcademicPeriod) Covers(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// ResolvePeriod picks the period covering now. When none does it falls back
// to the most recently started one. ok is false only for an empty list.
func ResolvePeriod(periods []AcademicPeriod, now time.Time) (AcademicPeriod, bool) {
	if len(periods) == 0 {
		return AcademicPeriod{}, false
	}
	latest := periods[0]
	for _, p := range periods {
		if p.Covers(now) {
			return p, true
		}
		if p.StartDate.After(latest.StartDate) {
			latest = p
		}
	}
	return latest, true
}

// Subject is a school subject; questions are scoped to it.
type Subject struct {
	ID       int64  `db:"id" json:"id"`
	SchoolID int64  `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
}

// ClassSubject binds a subject taught in one class to its teacher.
type ClassSubject struct {
	ID        int64  `db:"id" json:"id"`
	ClassName string `db:"class_name" json:"class_name"`
	SubjectID int64  `db:"subject_id" json:"subject_id"`
	TeacherID int64  `db:"teacher_id" json:"teacher_id"`
}

// QuestionType is the stored question type tag.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "MCQ"
	QuestionTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionShortAnswer QuestionType = "SHORT_ANSWER"
	QuestionEssay       QuestionType = "ESSAY"
)

// QuestionKind is either Objective or Subjective. The set is closed.
type QuestionKind interface {
	isQuestionKind()
}

// Objective questions are graded mechanically against the correct answer.
type Objective struct{ Type QuestionType }

// Subjective questions need a human-assigned score.
type Subjective struct{ Type QuestionType }

func (Objective) isQuestionKind()  {}
func (Subjective) isQuestionKind() {}

// Kind classifies the question type. Unknown types are an error.
func (t QuestionType) Kind() (QuestionKind, error) {
	switch t {
	case QuestionMCQ, QuestionTrueFalse:
		return Objective{Type: t}, nil
	case QuestionShortAnswer, QuestionEssay:
		return Subjective{Type: t}, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", t)
	}
}

// Options is an ordered list of answer choices stored as a JSON array.
type Options []string

// Value implements driver.Valuer.
func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *Options) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("options: unsupported source type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	*o = out
	return nil
}

// Question is a question-bank entry.
type Question struct {
	ID            int64        `db:"id" json:"id"`
	SubjectID     int64        `db:"subject_id" json:"subject_id"`
	Type          QuestionType `db:"type" json:"type"`
	QuestionText  string       `db:"question_text" json:"question_text"`
	Options       Options      `db:"options" json:"options"`
	CorrectAnswer *string      `db:"correct_answer" json:"correct_answer"`
	Marks         float64      `db:"marks" json:"marks"`
	CreatedByID   int64        `db:"created_by_id" json:"created_by_id"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// AssignmentQuestion links a question into an assignment at a position.
type AssignmentQuestion struct {
	ID           int64 `db:"id" json:"id"`
	AssignmentID int64 `db:"assignment_id" json:"assignment_id"`
	QuestionID   int64 `db:"question_id" json:"question_id"`
	Order        int   `db:"position" json:"order"`
}

// AssignmentType is the kind of work an assignment represents.
type AssignmentType string

const (
	AssignmentHomework  AssignmentType = "HOMEWORK"
	AssignmentClasswork AssignmentType = "CLASSWORK"
	AssignmentTest      AssignmentType = "TEST"
	AssignmentQuiz      AssignmentType = "QUIZ"
	AssignmentExam      AssignmentType = "EXAM"
)

// Assignment is a teacher-authored unit of work. TotalMarks is derived from
// the linked questions and never set directly.
type Assignment struct {
	ID               int64          `db:"id" json:"id"`
	ClassSubjectID   int64          `db:"class_subject_id" json:"class_subject_id"`
	AcademicPeriodID int64          `db:"academic_period_id" json:"academic_period_id"`
	Title            string         `db:"title" json:"title"`
	Description      string         `db:"description" json:"description"`
	Type             AssignmentType `db:"type" json:"type"`
	TotalMarks       float64        `db:"total_marks" json:"total_marks"`
	DueDate          *time.Time     `db:"due_date" json:"due_date,omitempty"`
	Duration         *int           `db:"duration" json:"duration,omitempty"`
	IsOnline         bool           `db:"is_online" json:"is_online"`
	IsPublished      bool           `db:"is_published" json:"is_published"`
	CreatedByID      int64          `db:"created_by_id" json:"created_by_id"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Submission is one student's single attempt at an assignment.
// TotalScore is always the sum of its responses' teacher scores.
type Submission struct {
	ID           int64     `db:"id" json:"id"`
	AssignmentID int64     `db:"assignment_id" json:"assignment_id"`
	StudentID    int64     `db:"student_id" json:"student_id"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
	IsLate       bool      `db:"is_late" json:"is_late"`
	IsGraded     bool      `db:"is_graded" json:"is_graded"`
	TotalScore   float64   `db:"total_score" json:"total_score"`
	Version      int64     `db:"version" json:"version"`
}

// QuestionResponse is the answer to one question within a submission.
type QuestionResponse struct {
	ID            int64    `db:"id" json:"id"`
	SubmissionID  int64    `db:"submission_id" json:"submission_id"`
	QuestionID    int64    `db:"question_id" json:"question_id"`
	StudentAnswer *string  `db:"student_answer" json:"student_answer"`
	IsCorrect     *bool    `db:"is_correct" json:"is_correct"`
	TeacherScore  *float64 `db:"teacher_score" json:"teacher_score"`
	Feedback      *string  `db:"feedback" json:"feedback"`
}

// ExamResult is the period-scoped grade record read by report cards.
// It is unique per (StudentID, ClassSubjectID, AcademicPeriodID, ExamType).
type ExamResult struct {
	ID               int64     `db:"id" json:"id"`
	StudentID        int64     `db:"student_id" json:"student_id"`
	ClassSubjectID   int64     `db:"class_subject_id" json:"class_subject_id"`
	AcademicPeriodID int64     `db:"academic_period_id" json:"academic_period_id"`
	ExamType         string    `db:"exam_type" json:"exam_type"`
	Score            float64   `db:"score" json:"score"`
	MaxScore         float64   `db:"max_score" json:"max_score"`
	Grade            string    `db:"grade" json:"grade"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// LinkedQuestion is a question as it appears inside an assignment.
type LinkedQuestion struct {
	LinkID int64 `db:"link_id" json:"link_id"`
	Order  int   `db:"position" json:"order"`
	Question
}

// AssignmentView combines an assignment with its ordered questions.
type AssignmentView struct {
	Assignment
	Questions       []LinkedQuestion `json:"questions"`
	SubmissionCount int              `json:"submission_count"`
}

// AssignmentSummary is one row of a class-subject assignment listing.
type AssignmentSummary struct {
	Assignment
	QuestionCount   int `db:"question_count" json:"question_count"`
	SubmissionCount int `db:"submission_count" json:"submission_count"`
	GradedCount     int `db:"graded_count" json:"graded_count"`
}

// ResponseView pairs a response with the question it answers.
type ResponseView struct {
	Response QuestionResponse `json:"response"`
	Question Question         `json:"question"`
}

// SubmissionView combines a submission with its responses for review.
type SubmissionView struct {
	Submission Submission     `json:"submission"`
	Assignment Assignment     `json:"assignment"`
	Responses  []ResponseView `json:"responses"`
}

// Config holds runtime server parameters set via CLI flags.
type Config struct {
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	Lang          string
}
