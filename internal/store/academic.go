package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pavelanni/gradebook/internal/model"
)

// CreateAcademicYear stores an academic year. Marking a year current clears
// the flag on the school's other years.
func (s *Store) CreateAcademicYear(ctx context.Context, y model.AcademicYear) (int64, error) {
	var id int64
	err := s.InTx(ctx, func(tx *Store) error {
		if y.IsCurrent {
			if _, err := tx.exec(ctx,
				`UPDATE academic_years SET is_current = FALSE WHERE school_id = ?`, y.SchoolID,
			); err != nil {
				return err
			}
		}
		var err error
		id, err = tx.insert(ctx,
			`INSERT INTO academic_years (school_id, name, is_current, start_date, end_date)
			 VALUES (?, ?, ?, ?, ?)`,
			y.SchoolID, y.Name, y.IsCurrent, y.StartDate, y.EndDate,
		)
		return err
	})
	return id, err
}

// CreatePeriod stores an academic period.
func (s *Store) CreatePeriod(ctx context.Context, p model.AcademicPeriod) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO academic_periods (academic_year_id, name, start_date, end_date) VALUES (?, ?, ?, ?)`,
		p.AcademicYearID, p.Name, p.StartDate, p.EndDate,
	)
}

// GetPeriod returns a period by ID.
func (s *Store) GetPeriod(ctx context.Context, id int64) (model.AcademicPeriod, error) {
	var p model.AcademicPeriod
	err := s.get(ctx, &p,
		`SELECT id, academic_year_id, name, start_date, end_date FROM academic_periods WHERE id = ?`, id,
	)
	return p, err
}

// ListCurrentYearPeriods returns the periods of the school's current academic year.
func (s *Store) ListCurrentYearPeriods(ctx context.Context, schoolID int64) ([]model.AcademicPeriod, error) {
	var periods []model.AcademicPeriod
	err := s.selectAll(ctx, &periods,
		`SELECT p.id, p.academic_year_id, p.name, p.start_date, p.end_date
		 FROM academic_periods p
		 JOIN academic_years y ON y.id = p.academic_year_id
		 WHERE y.school_id = ? AND y.is_current = TRUE
		 ORDER BY p.start_date`, schoolID,
	)
	return periods, err
}

// CurrentPeriod resolves the school's period for now. ok is false when the
// current year has no periods at all.
func (s *Store) CurrentPeriod(ctx context.Context, schoolID int64, now time.Time) (model.AcademicPeriod, bool, error) {
	periods, err := s.ListCurrentYearPeriods(ctx, schoolID)
	if err != nil {
		return model.AcademicPeriod{}, false, err
	}
	p, ok := model.ResolvePeriod(periods, now)
	return p, ok, nil
}

// CreateSubject stores a subject.
func (s *Store) CreateSubject(ctx context.Context, sub model.Subject) (int64, error) {
	return s.insert(ctx, `INSERT INTO subjects (school_id, name) VALUES (?, ?)`, sub.SchoolID, sub.Name)
}

// GetSubjectByName returns a school's subject by name, or nil if missing.
func (s *Store) GetSubjectByName(ctx context.Context, schoolID int64, name string) (*model.Subject, error) {
	var sub model.Subject
	err := s.get(ctx, &sub, `SELECT id, school_id, name FROM subjects WHERE school_id = ? AND name = ?`, schoolID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateClassSubject stores a class subject.
func (s *Store) CreateClassSubject(ctx context.Context, cs model.ClassSubject) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO class_subjects (class_name, subject_id, teacher_id) VALUES (?, ?, ?)`,
		cs.ClassName, cs.SubjectID, cs.TeacherID,
	)
}

// GetClassSubject returns a class subject by ID.
func (s *Store) GetClassSubject(ctx context.Context, id int64) (model.ClassSubject, error) {
	var cs model.ClassSubject
	err := s.get(ctx, &cs, `SELECT id, class_name, subject_id, teacher_id FROM class_subjects WHERE id = ?`, id)
	return cs, err
}
