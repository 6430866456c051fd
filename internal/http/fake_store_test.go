package http

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"opencampus/api/internal/model"
	"opencampus/api/internal/repository"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	users       map[string]*model.User
	courses     map[string]*model.Course
	grades      map[string]*model.Grade
	enrollments map[string]map[string]bool
	sessions    []model.SessionRecord
	events      []model.SecurityEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*model.User),
		courses:     make(map[string]*model.Course),
		grades:      make(map[string]*model.Grade),
		enrollments: make(map[string]map[string]bool),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user model.User) error {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	copied := user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return *user, nil
		}
	}
	return model.User{}, pgx.ErrNoRows
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (model.User, error) {
	if user, ok := f.users[userID]; ok {
		return *user, nil
	}
	return model.User{}, pgx.ErrNoRows
}

func (f *fakeStore) ListUsers(_ context.Context, limit int) ([]model.User, error) {
	var users []model.User
	for _, user := range f.users {
		if len(users) >= limit {
			break
		}
		users = append(users, *user)
	}
	return users, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, userID string, update repository.UserUpdate) (model.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	if update.Active != nil {
		user.Active = *update.Active
	}
	user.UpdatedAt = time.Now().UTC()
	return *user, nil
}

func (f *fakeStore) UpdateUserRole(_ context.Context, userID string, role model.Role) error {
	user, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Role = role
	return nil
}

func (f *fakeStore) SetTwoFactorSecret(_ context.Context, userID string, secret *string) error {
	user, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.TwoFactorSecret = secret
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, userID string) (bool, error) {
	if _, ok := f.users[userID]; !ok {
		return false, nil
	}
	delete(f.users, userID)
	return true, nil
}

func (f *fakeStore) RecordLoginFailure(_ context.Context, userID string, threshold int, lockUntil time.Time) (int, bool, error) {
	user, ok := f.users[userID]
	if !ok {
		return 0, false, pgx.ErrNoRows
	}
	user.FailedAttempts++
	if user.FailedAttempts >= threshold {
		until := lockUntil
		user.LockUntil = &until
	}
	return user.FailedAttempts, user.Locked(time.Now().UTC()), nil
}

func (f *fakeStore) ResetLoginState(_ context.Context, userID string, loginAt time.Time, ip *string) error {
	user, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.FailedAttempts = 0
	user.LockUntil = nil
	at := loginAt
	user.LastLoginAt = &at
	user.LastLoginIP = ip
	return nil
}

func (f *fakeStore) CreateSessionRecord(_ context.Context, record model.SessionRecord) error {
	f.sessions = append(f.sessions, record)
	return nil
}

func (f *fakeStore) ListSessionRecords(_ context.Context, userID string, limit int) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	for _, record := range f.sessions {
		if record.UserID == userID && len(records) < limit {
			records = append(records, record)
		}
	}
	return records, nil
}

func (f *fakeStore) AppendSecurityEvent(_ context.Context, event model.SecurityEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListSecurityEvents(_ context.Context, userID string, limit int) ([]model.SecurityEvent, error) {
	var events []model.SecurityEvent
	for _, event := range f.events {
		if event.UserID == userID && len(events) < limit {
			events = append(events, event)
		}
	}
	return events, nil
}

func (f *fakeStore) CreateCourse(_ context.Context, course model.Course) error {
	copied := course
	f.courses[course.ID] = &copied
	return nil
}

func (f *fakeStore) GetCourse(_ context.Context, courseID string) (model.Course, error) {
	if course, ok := f.courses[courseID]; ok {
		return *course, nil
	}
	return model.Course{}, pgx.ErrNoRows
}

func (f *fakeStore) ListCourses(_ context.Context, limit int) ([]model.Course, error) {
	var courses []model.Course
	for _, course := range f.courses {
		if len(courses) >= limit {
			break
		}
		courses = append(courses, *course)
	}
	return courses, nil
}

func (f *fakeStore) ListCoursesByTeacher(_ context.Context, teacherID string, limit int) ([]model.Course, error) {
	var courses []model.Course
	for _, course := range f.courses {
		if course.TeacherID == teacherID && len(courses) < limit {
			courses = append(courses, *course)
		}
	}
	return courses, nil
}

func (f *fakeStore) ListCoursesByStudent(_ context.Context, studentID string, limit int) ([]model.Course, error) {
	var courses []model.Course
	for courseID, students := range f.enrollments {
		if students[studentID] && len(courses) < limit {
			if course, ok := f.courses[courseID]; ok {
				courses = append(courses, *course)
			}
		}
	}
	return courses, nil
}

func (f *fakeStore) UpdateCourse(_ context.Context, courseID string, update repository.CourseUpdate) (model.Course, error) {
	course, ok := f.courses[courseID]
	if !ok {
		return model.Course{}, pgx.ErrNoRows
	}
	if update.Code != nil {
		course.Code = *update.Code
	}
	if update.Title != nil {
		course.Title = *update.Title
	}
	if update.Description != nil {
		course.Description = *update.Description
	}
	if update.TeacherID != nil {
		course.TeacherID = *update.TeacherID
	}
	course.UpdatedAt = time.Now().UTC()
	return *course, nil
}

func (f *fakeStore) DeleteCourse(_ context.Context, courseID string) (bool, error) {
	if _, ok := f.courses[courseID]; !ok {
		return false, nil
	}
	delete(f.courses, courseID)
	delete(f.enrollments, courseID)
	return true, nil
}

func (f *fakeStore) Enroll(_ context.Context, enrollment model.Enrollment) error {
	if f.enrollments[enrollment.CourseID] == nil {
		f.enrollments[enrollment.CourseID] = make(map[string]bool)
	}
	f.enrollments[enrollment.CourseID][enrollment.StudentID] = true
	return nil
}

func (f *fakeStore) Unenroll(_ context.Context, courseID, studentID string) (bool, error) {
	students := f.enrollments[courseID]
	if !students[studentID] {
		return false, nil
	}
	delete(students, studentID)
	return true, nil
}

func (f *fakeStore) IsEnrolled(_ context.Context, courseID, studentID string) (bool, error) {
	return f.enrollments[courseID][studentID], nil
}

func (f *fakeStore) ListStudentsByCourse(_ context.Context, courseID string, limit int) ([]model.User, error) {
	var students []model.User
	for studentID := range f.enrollments[courseID] {
		if user, ok := f.users[studentID]; ok && len(students) < limit {
			students = append(students, *user)
		}
	}
	return students, nil
}

func (f *fakeStore) CreateGrade(_ context.Context, grade model.Grade) error {
	copied := grade
	f.grades[grade.ID] = &copied
	return nil
}

func (f *fakeStore) GetGrade(_ context.Context, gradeID string) (model.Grade, error) {
	if grade, ok := f.grades[gradeID]; ok {
		return *grade, nil
	}
	return model.Grade{}, pgx.ErrNoRows
}

func (f *fakeStore) ListGradesByStudent(_ context.Context, studentID string, limit int) ([]model.Grade, error) {
	var grades []model.Grade
	for _, grade := range f.grades {
		if grade.StudentID == studentID && len(grades) < limit {
			grades = append(grades, *grade)
		}
	}
	return grades, nil
}

func (f *fakeStore) ListGradesByCourse(_ context.Context, courseID string, limit int) ([]model.Grade, error) {
	var grades []model.Grade
	for _, grade := range f.grades {
		if grade.CourseID == courseID && len(grades) < limit {
			grades = append(grades, *grade)
		}
	}
	return grades, nil
}

func (f *fakeStore) UpdateGrade(_ context.Context, gradeID string, update repository.GradeUpdate) (model.Grade, error) {
	grade, ok := f.grades[gradeID]
	if !ok {
		return model.Grade{}, pgx.ErrNoRows
	}
	if update.Title != nil {
		grade.Title = *update.Title
	}
	if update.Score != nil {
		grade.Score = *update.Score
	}
	if update.MaxScore != nil {
		grade.MaxScore = *update.MaxScore
	}
	return *grade, nil
}

func (f *fakeStore) DeleteGrade(_ context.Context, gradeID string) (bool, error) {
	if _, ok := f.grades[gradeID]; !ok {
		return false, nil
	}
	delete(f.grades, gradeID)
	return true, nil
}

func (f *fakeStore) CountUsersByRole(_ context.Context, role model.Role) (int, error) {
	count := 0
	for _, user := range f.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountCourses(_ context.Context) (int, error) {
	return len(f.courses), nil
}

func (f *fakeStore) CountEnrollmentsByCourse(_ context.Context, courseID string) (int, error) {
	return len(f.enrollments[courseID]), nil
}

var _ Store = (*fakeStore)(nil)
