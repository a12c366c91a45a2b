package model

import "time"

// ResultExport is the top-level JSON structure for exam result export.
type ResultExport struct {
	GeneratedAt time.Time   `json:"generated_at"`
	PeriodID    *int64      `json:"period_id,omitempty"`
	NumResults  int         `json:"num_results"`
	Results     []ResultRow `json:"results"`
}

// ResultRow is one exam result joined with display names.
type ResultRow struct {
	StudentID   int64     `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	ClassName   string    `db:"class_name" json:"class_name"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	PeriodName  string    `db:"period_name" json:"period_name"`
	ExamType    string    `db:"exam_type" json:"exam_type"`
	Score       float64   `db:"score" json:"score"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	Grade       string    `db:"grade" json:"grade"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Fixture is the JSON document loaded by the seed command. It stands in for
// the settings screens and submission capture that normally produce these rows.
type Fixture struct {
	Users         []FixtureUser         `json:"users"`
	Subjects      []FixtureSubject      `json:"subjects"`
	AcademicYears []FixtureAcademicYear `json:"academic_years"`
	ClassSubjects []FixtureClassSubject `json:"class_subjects"`
}

// FixtureUser is a user entry; Password is hashed on import.
type FixtureUser struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Password    string   `json:"password"`
	Role        UserRole `json:"role"`
	SchoolID    int64    `json:"school_id"`
}

// FixtureSubject is a subject entry.
type FixtureSubject struct {
	Name     string `json:"name"`
	SchoolID int64  `json:"school_id"`
}

// FixtureAcademicYear is a year with its periods.
type FixtureAcademicYear struct {
	Name      string          `json:"name"`
	SchoolID  int64           `json:"school_id"`
	IsCurrent bool            `json:"is_current"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Periods   []FixturePeriod `json:"periods"`
}

// FixturePeriod is a period inside a fixture year.
type FixturePeriod struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// FixtureClassSubject references its subject and teacher by name.
type FixtureClassSubject struct {
	ClassName string `json:"class_name"`
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher"`
}
