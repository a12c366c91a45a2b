package grading

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/store"
)

// ListingCache holds per class-subject assignment listings. Every write the
// service makes invalidates the affected listing. Get reports a generation
// that Set must be given back, so a listing read before an Invalidate is
// never stored.
type ListingCache interface {
	Get(classSubjectID int64) ([]model.AssignmentSummary, uint64, bool)
	Set(classSubjectID int64, gen uint64, rows []model.AssignmentSummary)
	Invalidate(classSubjectID int64)
}

// Assistant proposes a score for a subjective answer. It never writes.
type Assistant interface {
	SuggestScore(ctx context.Context, q model.Question, answer string) (*Suggestion, error)
}

// Suggestion is an assistant's proposed score and feedback.
type Suggestion struct {
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Feedback string  `json:"feedback"`
}

// Service implements assignment composition, grading, correction and
// result publication on top of the store.
type Service struct {
	store     *store.Store
	listings  ListingCache
	assistant Assistant
	validate  *validator.Validate
	now       func() time.Time
}

// New creates a Service. assistant may be nil, which disables suggestions.
func New(s *store.Store, listings ListingCache, assistant Assistant) *Service {
	return &Service{
		store:     s,
		listings:  listings,
		assistant: assistant,
		validate:  newValidator(),
		now:       time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return &Error{Kind: ErrInvalidInput, MessageID: MsgInvalidInput, Err: err}
	}
	return nil
}

// FieldErrors lists the offending fields of an InvalidInput failure.
func FieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field()+": "+fe.Tag())
	}
	return out
}

func (s *Service) invalidate(classSubjectID int64) {
	if s.listings != nil {
		s.listings.Invalidate(classSubjectID)
	}
}

func requireTeacher(caller *model.User) error {
	if caller == nil {
		return fail(ErrUnauthorized, MsgUnauthenticated)
	}
	if caller.Role != model.UserRoleTeacher {
		return fail(ErrUnauthorized, MsgTeacherOnly)
	}
	return nil
}

// ownedAssignment loads an assignment created by caller. Assignments owned by
// someone else are reported as missing.
func ownedAssignment(ctx context.Context, st *store.Store, caller *model.User, id int64) (model.Assignment, error) {
	a, err := st.GetAssignment(ctx, id)
	if err != nil {
		return a, notFound(err, MsgAssignmentNotFound)
	}
	if a.CreatedByID != caller.ID {
		return model.Assignment{}, fail(ErrNotFound, MsgAssignmentNotFound)
	}
	return a, nil
}

func ownedSubmission(ctx context.Context, st *store.Store, caller *model.User, id int64) (model.Submission, model.Assignment, error) {
	sub, err := st.GetSubmission(ctx, id)
	if err != nil {
		return sub, model.Assignment{}, notFound(err, MsgSubmissionNotFound)
	}
	a, err := st.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return sub, a, notFound(err, MsgSubmissionNotFound)
	}
	if a.CreatedByID != caller.ID {
		return model.Submission{}, model.Assignment{}, fail(ErrNotFound, MsgSubmissionNotFound)
	}
	return sub, a, nil
}

func ownedResponse(ctx context.Context, st *store.Store, caller *model.User, id int64) (model.QuestionResponse, model.Assignment, error) {
	r, err := st.GetResponse(ctx, id)
	if err != nil {
		return r, model.Assignment{}, notFound(err, MsgResponseNotFound)
	}
	_, a, err := ownedSubmission(ctx, st, caller, r.SubmissionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.QuestionResponse{}, model.Assignment{}, fail(ErrNotFound, MsgResponseNotFound)
		}
		return model.QuestionResponse{}, model.Assignment{}, err
	}
	return r, a, nil
}
