// Package seed loads reference data (users, subjects, academic calendar and
// class subjects) from JSON fixtures.
package seed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/store"
)

// ErrFileChanged is returned when a fixture with the same name was already
// imported with different content.
var ErrFileChanged = errors.New("fixture changed since last import")

// Result reports what a fixture import did.
type Result struct {
	Skipped       bool `json:"skipped"`
	Users         int  `json:"users"`
	Subjects      int  `json:"subjects"`
	Periods       int  `json:"periods"`
	ClassSubjects int  `json:"class_subjects"`
}

// Fixture imports one fixture file. A file whose content hash was already
// recorded under name is skipped. Everything is written in one transaction.
func Fixture(ctx context.Context, st *store.Store, name string, data []byte) (Result, error) {
	hash := sha256sum(data)
	storedHash, err := st.GetImportedFileHash(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if storedHash == hash {
		slog.Info("fixture unchanged, skipping", "name", name)
		return Result{Skipped: true}, nil
	}
	if storedHash != "" {
		return Result{}, fmt.Errorf("%s: %w", name, ErrFileChanged)
	}

	var fx model.Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", name, err)
	}

	var res Result
	err = st.InTx(ctx, func(tx *store.Store) error {
		var err error
		if res, err = apply(ctx, tx, fx); err != nil {
			return err
		}
		return tx.SetImportedFileHash(ctx, name, hash)
	})
	if err != nil {
		return Result{}, err
	}
	slog.Info("imported fixture",
		"name", name,
		"users", res.Users,
		"subjects", res.Subjects,
		"periods", res.Periods,
		"class_subjects", res.ClassSubjects,
	)
	return res, nil
}

func apply(ctx context.Context, tx *store.Store, fx model.Fixture) (Result, error) {
	var res Result
	for _, u := range fx.Users {
		if u.Username == "" || u.Password == "" {
			return res, fmt.Errorf("user %q: username and password required", u.Username)
		}
		if _, err := CreateUser(ctx, tx, u); err != nil {
			return res, err
		}
		res.Users++
	}

	for _, sub := range fx.Subjects {
		if _, err := tx.CreateSubject(ctx, model.Subject{SchoolID: sub.SchoolID, Name: sub.Name}); err != nil {
			return res, fmt.Errorf("create subject %q: %w", sub.Name, err)
		}
		res.Subjects++
	}

	for _, y := range fx.AcademicYears {
		yearID, err := tx.CreateAcademicYear(ctx, model.AcademicYear{
			SchoolID:  y.SchoolID,
			Name:      y.Name,
			IsCurrent: y.IsCurrent,
			StartDate: y.StartDate,
			EndDate:   y.EndDate,
		})
		if err != nil {
			return res, fmt.Errorf("create academic year %q: %w", y.Name, err)
		}
		for _, p := range y.Periods {
			if p.EndDate.Before(p.StartDate) {
				return res, fmt.Errorf("period %q ends before it starts", p.Name)
			}
			if _, err := tx.CreatePeriod(ctx, model.AcademicPeriod{
				AcademicYearID: yearID,
				Name:           p.Name,
				StartDate:      p.StartDate,
				EndDate:        p.EndDate,
			}); err != nil {
				return res, fmt.Errorf("create period %q: %w", p.Name, err)
			}
			res.Periods++
		}
	}

	for _, cs := range fx.ClassSubjects {
		teacher, err := tx.GetUserByUsername(ctx, cs.Teacher)
		if err != nil {
			return res, fmt.Errorf("look up teacher %q: %w", cs.Teacher, err)
		}
		if teacher == nil || teacher.Role != model.UserRoleTeacher {
			return res, fmt.Errorf("class subject %s/%s: %q is not a teacher", cs.ClassName, cs.Subject, cs.Teacher)
		}
		subject, err := tx.GetSubjectByName(ctx, teacher.SchoolID, cs.Subject)
		if err != nil {
			return res, fmt.Errorf("look up subject %q: %w", cs.Subject, err)
		}
		if subject == nil {
			return res, fmt.Errorf("class subject %s: unknown subject %q", cs.ClassName, cs.Subject)
		}
		if _, err := tx.CreateClassSubject(ctx, model.ClassSubject{
			ClassName: cs.ClassName,
			SubjectID: subject.ID,
			TeacherID: teacher.ID,
		}); err != nil {
			return res, fmt.Errorf("create class subject %s/%s: %w", cs.ClassName, cs.Subject, err)
		}
		res.ClassSubjects++
	}
	return res, nil
}

// CreateUser hashes the password and stores an active user.
func CreateUser(ctx context.Context, st *store.Store, u model.FixtureUser) (int64, error) {
	switch u.Role {
	case model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin:
	default:
		return 0, fmt.Errorf("user %q: unknown role %q", u.Username, u.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password for %q: %w", u.Username, err)
	}
	displayName := u.DisplayName
	if displayName == "" {
		displayName = u.Username
	}
	id, err := st.CreateUser(ctx, model.User{
		Username:     u.Username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         u.Role,
		SchoolID:     u.SchoolID,
		Active:       true,
	})
	if err != nil {
		return 0, fmt.Errorf("create user %q: %w", u.Username, err)
	}
	return id, nil
}

// Admin creates the default admin account when the database has no users.
func Admin(ctx context.Context, st *store.Store, password string) error {
	count, err := st.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or GRADEBOOK_ADMIN_PASSWORD env var")
	}
	if _, err := CreateUser(ctx, st, model.FixtureUser{
		Username:    "admin",
		DisplayName: "Administrator",
		Password:    password,
		Role:        model.UserRoleAdmin,
	}); err != nil {
		return err
	}
	slog.Info("seeded default admin user", "username", "admin")
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
