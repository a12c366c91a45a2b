package grading

import (
	"database/sql"
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by Service wraps exactly one of them,
// except infrastructure failures which wrap the underlying store error.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a domain failure. MessageID names the localized message shown to
// the caller and Data fills its template.
type Error struct {
	Kind      error
	MessageID string
	Data      map[string]any
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.MessageID, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.MessageID)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(kind error, msgID string) error {
	return &Error{Kind: kind, MessageID: msgID}
}

// notFound maps sql.ErrNoRows to a NotFound failure and passes anything else through.
func notFound(err error, msgID string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fail(ErrNotFound, msgID)
	}
	return err
}

// Message IDs, shared with the locale files.
const (
	MsgAssignmentNotFound   = "AssignmentNotFound"
	MsgClassSubjectNotFound = "ClassSubjectNotFound"
	MsgQuestionNotFound     = "QuestionNotFound"
	MsgSubmissionNotFound   = "SubmissionNotFound"
	MsgResponseNotFound     = "ResponseNotFound"
	MsgAssignmentPublished  = "AssignmentPublished"
	MsgNoQuestions          = "NoQuestions"
	MsgHasSubmissions       = "HasSubmissions"
	MsgNoCurrentPeriod      = "NoCurrentPeriod"
	MsgNotSubjective        = "NotSubjective"
	MsgAssistantDisabled    = "AssistantDisabled"
	MsgScoreOutOfRange      = "ScoreOutOfRange"
	MsgInvalidInput         = "InvalidInput"
	MsgUnauthenticated      = "Unauthenticated"
	MsgTeacherOnly          = "TeacherOnly"
)
