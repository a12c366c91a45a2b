package grading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/gradebook/internal/cache"
	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/store"
)

type testEnv struct {
	svc     *Service
	st      *store.Store
	teacher *model.User
	other   *model.User
	student *model.User
	period  *model.AcademicPeriod
	csID    int64
}

func ptr[T any](v T) *T { return &v }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{st: st}
	env.teacher = createUser(t, st, "teacher", model.UserRoleTeacher)
	env.other = createUser(t, st, "other", model.UserRoleTeacher)
	env.student = createUser(t, st, "student", model.UserRoleStudent)

	subjectID, err := st.CreateSubject(ctx, model.Subject{SchoolID: 1, Name: "Geography"})
	if err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	yearID, err := st.CreateAcademicYear(ctx, model.AcademicYear{
		SchoolID: 1, Name: "2025/2026", IsCurrent: true,
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateAcademicYear: %v", err)
	}
	periodID, err := st.CreatePeriod(ctx, model.AcademicPeriod{
		AcademicYearID: yearID, Name: "Term 1",
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreatePeriod: %v", err)
	}
	p, err := st.GetPeriod(ctx, periodID)
	if err != nil {
		t.Fatalf("GetPeriod: %v", err)
	}
	env.period = &p

	env.csID, err = st.CreateClassSubject(ctx, model.ClassSubject{ClassName: "8B", SubjectID: subjectID, TeacherID: env.teacher.ID})
	if err != nil {
		t.Fatalf("CreateClassSubject: %v", err)
	}

	env.svc = New(st, cache.NewListings(time.Minute), nil)
	return env
}

func createUser(t *testing.T, st *store.Store, name string, role model.UserRole) *model.User {
	t.Helper()
	ctx := context.Background()
	id, err := st.CreateUser(ctx, model.User{Username: name, DisplayName: name, PasswordHash: "x", Role: role, SchoolID: 1, Active: true})
	if err != nil {
		t.Fatalf("CreateUser %s: %v", name, err)
	}
	u, err := st.GetUserByID(ctx, id)
	if err != nil || u == nil {
		t.Fatalf("GetUserByID %s: %v", name, err)
	}
	return u
}

func (env *testEnv) newAssignment(t *testing.T, typ model.AssignmentType) model.Assignment {
	t.Helper()
	a, err := env.svc.CreateAssignment(context.Background(), env.teacher, env.period, CreateAssignmentInput{
		ClassSubjectID: env.csID,
		Title:          "Capitals",
		Type:           typ,
	})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	return a
}

func (env *testEnv) addQuestion(t *testing.T, assignmentID int64, in AddQuestionInput) model.LinkedQuestion {
	t.Helper()
	lq, err := env.svc.AddQuestion(context.Background(), env.teacher, assignmentID, in)
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	return lq
}

func mcq(answer string, marks float64) AddQuestionInput {
	return AddQuestionInput{
		Type:          model.QuestionMCQ,
		QuestionText:  "Capital of France?",
		Options:       []string{"Paris", "London", "Rome"},
		CorrectAnswer: ptr(answer),
		Marks:         marks,
	}
}

func essay(marks float64) AddQuestionInput {
	return AddQuestionInput{Type: model.QuestionEssay, QuestionText: "Describe the Seine.", Marks: marks}
}

func (env *testEnv) totalMarks(t *testing.T, id int64) float64 {
	t.Helper()
	a, err := env.st.GetAssignment(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	return a.TotalMarks
}

func TestCreateAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.newAssignment(t, model.AssignmentQuiz)
	if a.IsPublished || a.TotalMarks != 0 || a.AcademicPeriodID != env.period.ID || a.CreatedByID != env.teacher.ID {
		t.Errorf("unexpected draft: %+v", a)
	}

	tests := []struct {
		name   string
		caller *model.User
		period *model.AcademicPeriod
		in     CreateAssignmentInput
		kind   error
	}{
		{"no period", env.teacher, nil, CreateAssignmentInput{ClassSubjectID: env.csID, Title: "x", Type: model.AssignmentTest}, ErrInvalidState},
		{"missing title", env.teacher, env.period, CreateAssignmentInput{ClassSubjectID: env.csID, Type: model.AssignmentTest}, ErrInvalidInput},
		{"unknown type", env.teacher, env.period, CreateAssignmentInput{ClassSubjectID: env.csID, Title: "x", Type: "PROJECT"}, ErrInvalidInput},
		{"someone else's class", env.other, env.period, CreateAssignmentInput{ClassSubjectID: env.csID, Title: "x", Type: model.AssignmentTest}, ErrNotFound},
		{"unknown class", env.teacher, env.period, CreateAssignmentInput{ClassSubjectID: 999, Title: "x", Type: model.AssignmentTest}, ErrNotFound},
		{"student", env.student, env.period, CreateAssignmentInput{ClassSubjectID: env.csID, Title: "x", Type: model.AssignmentTest}, ErrUnauthorized},
		{"anonymous", nil, env.period, CreateAssignmentInput{ClassSubjectID: env.csID, Title: "x", Type: model.AssignmentTest}, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateAssignment(ctx, tt.caller, tt.period, tt.in)
			if !errors.Is(err, tt.kind) {
				t.Errorf("err = %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestInvalidInputReportsFields(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.CreateAssignment(context.Background(), env.teacher, env.period, CreateAssignmentInput{Type: "BOGUS"})
	fields := FieldErrors(err)
	if len(fields) != 3 {
		t.Fatalf("FieldErrors = %v, want class_subject_id, title and type", fields)
	}
	if fields[0] != "class_subject_id: required" {
		t.Errorf("first field error = %q", fields[0])
	}
}

func TestAddQuestionValidation(t *testing.T) {
	env := newTestEnv(t)
	a := env.newAssignment(t, model.AssignmentQuiz)

	tests := []struct {
		name string
		in   AddQuestionInput
	}{
		{"zero marks", mcq("Paris", 0)},
		{"mcq without key", AddQuestionInput{Type: model.QuestionMCQ, QuestionText: "q", Options: []string{"a", "b"}, Marks: 1}},
		{"mcq key not an option", mcq("Berlin", 1)},
		{"mcq single option", AddQuestionInput{Type: model.QuestionMCQ, QuestionText: "q", Options: []string{"a"}, CorrectAnswer: ptr("a"), Marks: 1}},
		{"true false bad key", AddQuestionInput{Type: model.QuestionTrueFalse, QuestionText: "q", CorrectAnswer: ptr("maybe"), Marks: 1}},
		{"unknown type", AddQuestionInput{Type: "MATCHING", QuestionText: "q", Marks: 1}},
		{"empty text", AddQuestionInput{Type: model.QuestionEssay, Marks: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.AddQuestion(context.Background(), env.teacher, a.ID, tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	tf := AddQuestionInput{Type: model.QuestionTrueFalse, QuestionText: "Water is wet.", CorrectAnswer: ptr("True"), Marks: 1}
	if _, err := env.svc.AddQuestion(context.Background(), env.teacher, a.ID, tf); err != nil {
		t.Errorf("valid true/false rejected: %v", err)
	}
}

func TestTotalMarksInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.newAssignment(t, model.AssignmentTest)

	first := env.addQuestion(t, a.ID, mcq("Paris", 2))
	second := env.addQuestion(t, a.ID, essay(5))
	third := env.addQuestion(t, a.ID, mcq("Rome", 3))
	if got := env.totalMarks(t, a.ID); got != 10 {
		t.Fatalf("total after adds = %v, want 10", got)
	}
	if first.Order != 1 || second.Order != 2 || third.Order != 3 {
		t.Errorf("orders = %d %d %d", first.Order, second.Order, third.Order)
	}

	if err := env.svc.RemoveQuestion(ctx, env.teacher, second.LinkID); err != nil {
		t.Fatalf("RemoveQuestion: %v", err)
	}
	if got := env.totalMarks(t, a.ID); got != 5 {
		t.Errorf("total after remove = %v, want 5", got)
	}

	view, err := env.svc.GetAssignment(ctx, env.teacher, a.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if len(view.Questions) != 2 || view.Questions[1].LinkID != third.LinkID || view.Questions[1].Order != 2 {
		t.Errorf("questions after remove = %+v", view.Questions)
	}
	var sum float64
	for _, q := range view.Questions {
		sum += q.Marks
	}
	if view.TotalMarks != sum {
		t.Errorf("TotalMarks %v != sum of linked marks %v", view.TotalMarks, sum)
	}

	if err := env.svc.RemoveQuestion(ctx, env.teacher, second.LinkID); !errors.Is(err, ErrNotFound) {
		t.Errorf("removing twice: %v, want ErrNotFound", err)
	}
	if err := env.svc.RemoveQuestion(ctx, env.other, first.LinkID); !errors.Is(err, ErrNotFound) {
		t.Errorf("removing another teacher's question: %v, want ErrNotFound", err)
	}
	// The question itself stays in the bank.
	if _, err := env.st.GetQuestion(ctx, second.ID); err != nil {
		t.Errorf("removed question gone from bank: %v", err)
	}
}

func TestPublishGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.newAssignment(t, model.AssignmentQuiz)

	if _, err := env.svc.Publish(ctx, env.teacher, a.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("publish without questions: %v, want ErrInvalidState", err)
	}

	lq := env.addQuestion(t, a.ID, mcq("Paris", 1))
	pub, err := env.svc.Publish(ctx, env.teacher, a.ID)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !pub.IsPublished {
		t.Error("assignment not marked published")
	}

	if _, err := env.svc.AddQuestion(ctx, env.teacher, a.ID, essay(2)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("add after publish: %v, want ErrInvalidState", err)
	}
	if err := env.svc.RemoveQuestion(ctx, env.teacher, lq.LinkID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("remove after publish: %v, want ErrInvalidState", err)
	}
	again, err := env.svc.Publish(ctx, env.teacher, a.ID)
	if err != nil || !again.IsPublished {
		t.Errorf("second publish = %+v, %v", again, err)
	}
	if _, err := env.svc.Publish(ctx, env.other, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("publish by another teacher: %v, want ErrNotFound", err)
	}
}

func TestDeletionGuard(t *testing.T) {
	for _, publish := range []bool{false, true} {
		env := newTestEnv(t)
		ctx := context.Background()
		a := env.newAssignment(t, model.AssignmentHomework)
		lq := env.addQuestion(t, a.ID, mcq("Paris", 1))
		if publish {
			if _, err := env.svc.Publish(ctx, env.teacher, a.ID); err != nil {
				t.Fatalf("Publish: %v", err)
			}
		}
		if _, err := env.st.CreateSubmission(ctx, model.Submission{AssignmentID: a.ID, StudentID: env.student.ID, SubmittedAt: time.Now()},
			[]model.QuestionResponse{{QuestionID: lq.ID, StudentAnswer: ptr("Paris")}}); err != nil {
			t.Fatalf("CreateSubmission: %v", err)
		}

		if err := env.svc.DeleteAssignment(ctx, env.teacher, a.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("published=%v: delete with submissions: %v, want ErrInvalidState", publish, err)
		}
	}

	env := newTestEnv(t)
	ctx := context.Background()
	a := env.newAssignment(t, model.AssignmentHomework)
	env.addQuestion(t, a.ID, mcq("Paris", 1))
	if err := env.svc.DeleteAssignment(ctx, env.other, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete by another teacher: %v, want ErrNotFound", err)
	}
	if err := env.svc.DeleteAssignment(ctx, env.teacher, a.ID); err != nil {
		t.Fatalf("DeleteAssignment: %v", err)
	}
	if _, err := env.svc.GetAssignment(ctx, env.teacher, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: %v, want ErrNotFound", err)
	}
}

func TestListAssignmentsCacheInvalidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.newAssignment(t, model.AssignmentQuiz)

	rows, err := env.svc.ListAssignments(ctx, env.teacher, env.csID)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(rows) != 1 || rows[0].QuestionCount != 0 {
		t.Fatalf("rows = %+v", rows)
	}

	env.addQuestion(t, a.ID, mcq("Paris", 1))
	rows, err = env.svc.ListAssignments(ctx, env.teacher, env.csID)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if rows[0].QuestionCount != 1 || rows[0].TotalMarks != 1 {
		t.Errorf("stale listing after AddQuestion: %+v", rows[0])
	}

	if _, err := env.svc.ListAssignments(ctx, env.other, env.csID); !errors.Is(err, ErrNotFound) {
		t.Errorf("listing another teacher's class: %v, want ErrNotFound", err)
	}
}
