package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/gradebook/internal/cache"
	"github.com/pavelanni/gradebook/internal/grading"
	appI18n "github.com/pavelanni/gradebook/internal/i18n"
	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/seed"
	"github.com/pavelanni/gradebook/internal/store"
)

const testFixture = `{
  "users": [
    {"username": "teacher", "password": "pw", "role": "teacher", "school_id": 1},
    {"username": "other", "password": "pw", "role": "teacher", "school_id": 1},
    {"username": "student", "password": "pw", "role": "student", "school_id": 1},
    {"username": "root", "password": "pw", "role": "admin", "school_id": 1}
  ],
  "subjects": [{"name": "History", "school_id": 1}],
  "academic_years": [{
    "name": "2025/2026", "school_id": 1, "is_current": true,
    "start_date": "2025-09-01T00:00:00Z", "end_date": "2026-07-31T00:00:00Z",
    "periods": [{"name": "Term 1", "start_date": "2025-09-01T00:00:00Z", "end_date": "2025-12-20T00:00:00Z"}]
  }],
  "class_subjects": [{"class_name": "10A", "subject": "History", "teacher": "teacher"}]
}`

type testServer struct {
	t      *testing.T
	st     *store.Store
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := seed.Fixture(ctx, st, "test.json", []byte(testFixture)); err != nil {
		t.Fatalf("seed.Fixture: %v", err)
	}
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	h := New(st, grading.New(st, cache.NewListings(time.Minute), nil), model.Config{})
	h.now = func() time.Time { return time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Use(appI18n.Middleware())
	h.Routes(r)
	return &testServer{t: t, st: st, router: r}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Fields  []string        `json:"fields"`
}

func (ts *testServer) do(method, path string, body any, cookie *http.Cookie, headers ...string) (int, response) {
	ts.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			ts.t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			ts.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func (ts *testServer) login(username string) *http.Cookie {
	ts.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"`+username+`","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		ts.t.Fatalf("login %s: status %d: %s", username, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	ts.t.Fatalf("login %s: no session cookie", username)
	return nil
}

func decodeData[T any](t *testing.T, resp response) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
	return v
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	code, resp := ts.do(http.MethodPost, "/login", map[string]string{"username": "teacher", "password": "wrong"}, nil)
	if code != http.StatusUnauthorized || resp.Success || resp.Error != "Invalid username or password." {
		t.Errorf("bad password: %d %+v", code, resp)
	}

	cookie := ts.login("teacher")
	code, resp = ts.do(http.MethodGet, "/me", nil, cookie)
	if code != http.StatusOK {
		t.Fatalf("/me: %d %+v", code, resp)
	}
	if me := decodeData[model.User](t, resp); me.Username != "teacher" || me.Role != model.UserRoleTeacher {
		t.Errorf("/me = %+v", me)
	}

	if code, _ := ts.do(http.MethodPost, "/logout", nil, cookie); code != http.StatusOK {
		t.Errorf("logout: %d", code)
	}
	if code, _ := ts.do(http.MethodGet, "/me", nil, cookie); code != http.StatusUnauthorized {
		t.Errorf("/me after logout: %d, want 401", code)
	}
}

func TestAuthGuards(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		user string
		path string
		want int
	}{
		{"anonymous", "", "/assignments?class_subject_id=1", http.StatusUnauthorized},
		{"student", "student", "/assignments?class_subject_id=1", http.StatusForbidden},
		{"teacher on admin", "teacher", "/admin/users", http.StatusForbidden},
		{"admin on admin", "root", "/admin/users", http.StatusOK},
		{"teacher", "teacher", "/assignments?class_subject_id=1", http.StatusOK},
		{"other teacher's class", "other", "/assignments?class_subject_id=1", http.StatusNotFound},
		{"missing query", "teacher", "/assignments", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookie *http.Cookie
			if tt.user != "" {
				cookie = ts.login(tt.user)
			}
			code, resp := ts.do(http.MethodGet, tt.path, nil, cookie)
			if code != tt.want {
				t.Errorf("status = %d, want %d (%+v)", code, tt.want, resp)
			}
			if code != http.StatusOK && (resp.Success || resp.Error == "") {
				t.Errorf("failure envelope = %+v", resp)
			}
		})
	}
}

func TestGradingFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	teacher := ts.login("teacher")

	code, resp := ts.do(http.MethodGet, "/periods/current", nil, teacher)
	if code != http.StatusOK || decodeData[model.AcademicPeriod](t, resp).Name != "Term 1" {
		t.Fatalf("current period: %d %+v", code, resp)
	}

	code, resp = ts.do(http.MethodPost, "/assignments", map[string]any{
		"class_subject_id": 1, "title": "The Romans", "type": "TEST",
	}, teacher)
	if code != http.StatusCreated {
		t.Fatalf("create assignment: %d %+v", code, resp)
	}
	a := decodeData[model.Assignment](t, resp)

	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/assignments/%d/publish", a.ID), nil, teacher)
	if code != http.StatusConflict || resp.Error != "Add at least one question before publishing." {
		t.Errorf("publish empty: %d %+v", code, resp)
	}

	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/assignments/%d/questions", a.ID), map[string]any{
		"type": "MCQ", "question_text": "Who founded Rome?", "options": []string{"Romulus", "Caesar"},
		"correct_answer": "Romulus", "marks": 2,
	}, teacher)
	if code != http.StatusCreated {
		t.Fatalf("add MCQ: %d %+v", code, resp)
	}
	mcq := decodeData[model.LinkedQuestion](t, resp)
	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/assignments/%d/questions", a.ID), map[string]any{
		"type": "ESSAY", "question_text": "Why did the empire fall?", "marks": 5,
	}, teacher)
	if code != http.StatusCreated {
		t.Fatalf("add essay: %d %+v", code, resp)
	}
	essay := decodeData[model.LinkedQuestion](t, resp)

	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/assignments/%d/publish", a.ID), nil, teacher)
	if code != http.StatusOK || !decodeData[model.Assignment](t, resp).IsPublished {
		t.Fatalf("publish: %d %+v", code, resp)
	}

	student, err := ts.st.GetUserByUsername(ctx, "student")
	if err != nil || student == nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	answer, essayText := " romulus", "Many reasons."
	subID, err := ts.st.CreateSubmission(ctx, model.Submission{AssignmentID: a.ID, StudentID: student.ID, SubmittedAt: time.Now()},
		[]model.QuestionResponse{
			{QuestionID: mcq.ID, StudentAnswer: &answer},
			{QuestionID: essay.ID, StudentAnswer: &essayText},
		})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	code, resp = ts.do(http.MethodDelete, fmt.Sprintf("/assignments/%d", a.ID), nil, teacher)
	if code != http.StatusConflict {
		t.Errorf("delete with submissions: %d %+v", code, resp)
	}

	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/submissions/%d/grade", subID), nil, teacher)
	if code != http.StatusOK {
		t.Fatalf("grade submission: %d %+v", code, resp)
	}
	out := decodeData[grading.Outcome](t, resp)
	if out.Submission.TotalScore != 2 || !out.Submission.IsGraded || out.Result.Grade != "F" {
		t.Errorf("grade outcome = %+v", out)
	}

	code, resp = ts.do(http.MethodGet, fmt.Sprintf("/submissions/%d", subID), nil, teacher)
	if code != http.StatusOK {
		t.Fatalf("get submission: %d %+v", code, resp)
	}
	view := decodeData[model.SubmissionView](t, resp)
	var essayRespID int64
	for _, r := range view.Responses {
		if r.Question.ID == essay.ID {
			essayRespID = r.Response.ID
		}
	}

	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/responses/%d/grade", essayRespID), map[string]any{"score": 6}, teacher)
	if code != http.StatusBadRequest || resp.Error != "Score must be between 0 and 5." {
		t.Errorf("out of range score: %d %+v", code, resp)
	}
	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/responses/%d/grade", essayRespID), map[string]any{"score": 4, "feedback": "Solid"}, teacher)
	if code != http.StatusOK || decodeData[grading.ResponseOutcome](t, resp).Submission.TotalScore != 6 {
		t.Errorf("grade essay: %d %+v", code, resp)
	}

	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/responses/%d/suggest", essayRespID), nil, teacher)
	if code != http.StatusConflict {
		t.Errorf("suggest without assistant: %d %+v", code, resp)
	}

	code, resp = ts.do(http.MethodPost, fmt.Sprintf("/submissions/%d/publish", subID), nil, teacher)
	if code != http.StatusOK {
		t.Fatalf("publish results: %d %+v", code, resp)
	}
	if res := decodeData[grading.Outcome](t, resp).Result; res.Score != 6 || res.MaxScore != 7 || res.Grade != "A" {
		t.Errorf("published result = %+v", res)
	}

	other := ts.login("other")
	code, resp = ts.do(http.MethodGet, fmt.Sprintf("/submissions/%d", subID), nil, other)
	if code != http.StatusNotFound || resp.Error != "Submission not found." {
		t.Errorf("other teacher reading submission: %d %+v", code, resp)
	}

	code, resp = ts.do(http.MethodGet, fmt.Sprintf("/assignments/%d/submissions", a.ID), nil, teacher)
	if code != http.StatusOK || len(decodeData[[]model.Submission](t, resp)) != 1 {
		t.Errorf("list submissions: %d %+v", code, resp)
	}
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)
	teacher := ts.login("teacher")

	code, resp := ts.do(http.MethodPost, "/assignments", `{"title": `, teacher)
	if code != http.StatusBadRequest || resp.Error != "Malformed request." {
		t.Errorf("malformed JSON: %d %+v", code, resp)
	}
	code, _ = ts.do(http.MethodPost, "/assignments", `{"title": "x", "colour": "red"}`, teacher)
	if code != http.StatusBadRequest {
		t.Errorf("unknown field: %d", code)
	}
	code, resp = ts.do(http.MethodPost, "/assignments", map[string]any{"class_subject_id": 1}, teacher)
	if code != http.StatusBadRequest || len(resp.Fields) != 2 {
		t.Errorf("validation: %d %+v", code, resp)
	}
	if !strings.Contains(resp.Error, "2 fields are invalid.") {
		t.Errorf("validation message = %q", resp.Error)
	}
	code, _ = ts.do(http.MethodGet, "/assignments/abc", nil, teacher)
	if code != http.StatusBadRequest {
		t.Errorf("non-numeric id: %d", code)
	}
	code, _ = ts.do(http.MethodGet, "/assignments/42", nil, teacher)
	if code != http.StatusNotFound {
		t.Errorf("unknown assignment: %d", code)
	}
	code, _ = ts.do(http.MethodPost, "/responses/1/grade", map[string]any{"feedback": "no score"}, teacher)
	if code != http.StatusBadRequest {
		t.Errorf("missing score: %d", code)
	}
}

func TestLocalizedErrors(t *testing.T) {
	ts := newTestServer(t)
	teacher := ts.login("teacher")

	code, resp := ts.do(http.MethodGet, "/assignments/42", nil, teacher, "Accept-Language", "ru-RU,ru;q=0.9")
	if code != http.StatusNotFound || resp.Error != "Задание не найдено." {
		t.Errorf("russian error: %d %+v", code, resp)
	}
}

func TestNoCurrentPeriod(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	if _, err := seed.CreateUser(ctx, ts.st, model.FixtureUser{Username: "elsewhere", Password: "pw", Role: model.UserRoleTeacher, SchoolID: 2}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	cookie := ts.login("elsewhere")

	code, resp := ts.do(http.MethodGet, "/periods/current", nil, cookie)
	if code != http.StatusNotFound {
		t.Errorf("current period: %d %+v", code, resp)
	}
	code, resp = ts.do(http.MethodPost, "/assignments", map[string]any{"class_subject_id": 1, "title": "x", "type": "QUIZ"}, cookie)
	if code != http.StatusConflict || resp.Error != "No current academic period is configured." {
		t.Errorf("create without period: %d %+v", code, resp)
	}
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login("root")

	code, resp := ts.do(http.MethodPost, "/admin/users", map[string]any{
		"username": "newbie", "password": "pw", "role": "teacher", "school_id": 1,
	}, admin)
	if code != http.StatusCreated || decodeData[model.User](t, resp).Username != "newbie" {
		t.Fatalf("create user: %d %+v", code, resp)
	}
	code, _ = ts.do(http.MethodPost, "/admin/users", map[string]any{"username": "x", "password": "pw", "role": "janitor"}, admin)
	if code != http.StatusBadRequest {
		t.Errorf("unknown role: %d", code)
	}

	fixture := `{"subjects": [{"name": "Music", "school_id": 1}]}`
	code, resp = ts.do(http.MethodPost, "/admin/fixtures?name=music.json", fixture, admin)
	if code != http.StatusOK || decodeData[seed.Result](t, resp).Subjects != 1 {
		t.Fatalf("upload fixture: %d %+v", code, resp)
	}
	code, resp = ts.do(http.MethodPost, "/admin/fixtures?name=music.json", fixture, admin)
	if code != http.StatusOK || !decodeData[seed.Result](t, resp).Skipped {
		t.Errorf("re-upload: %d %+v", code, resp)
	}
	code, _ = ts.do(http.MethodPost, "/admin/fixtures?name=music.json", `{"subjects": []}`, admin)
	if code != http.StatusConflict {
		t.Errorf("changed fixture: %d, want 409", code)
	}

	code, resp = ts.do(http.MethodGet, "/admin/users", nil, admin)
	if code != http.StatusOK || len(decodeData[[]model.User](t, resp)) != 5 {
		t.Errorf("list users: %d %+v", code, resp)
	}
}
