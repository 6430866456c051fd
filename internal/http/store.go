package http

import (
	"context"
	"time"

	"opencampus/api/internal/model"
	"opencampus/api/internal/repository"
)

// Store is the persistence surface the handlers depend on. *repository.Store
// is the production implementation; tests plug in an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
	UpdateUser(ctx context.Context, userID string, update repository.UserUpdate) (model.User, error)
	UpdateUserRole(ctx context.Context, userID string, role model.Role) error
	SetTwoFactorSecret(ctx context.Context, userID string, secret *string) error
	DeleteUser(ctx context.Context, userID string) (bool, error)

	RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil time.Time) (int, bool, error)
	ResetLoginState(ctx context.Context, userID string, loginAt time.Time, ip *string) error
	CreateSessionRecord(ctx context.Context, record model.SessionRecord) error
	ListSessionRecords(ctx context.Context, userID string, limit int) ([]model.SessionRecord, error)
	AppendSecurityEvent(ctx context.Context, event model.SecurityEvent) error
	ListSecurityEvents(ctx context.Context, userID string, limit int) ([]model.SecurityEvent, error)

	CreateCourse(ctx context.Context, course model.Course) error
	GetCourse(ctx context.Context, courseID string) (model.Course, error)
	ListCourses(ctx context.Context, limit int) ([]model.Course, error)
	ListCoursesByTeacher(ctx context.Context, teacherID string, limit int) ([]model.Course, error)
	ListCoursesByStudent(ctx context.Context, studentID string, limit int) ([]model.Course, error)
	UpdateCourse(ctx context.Context, courseID string, update repository.CourseUpdate) (model.Course, error)
	DeleteCourse(ctx context.Context, courseID string) (bool, error)

	Enroll(ctx context.Context, enrollment model.Enrollment) error
	Unenroll(ctx context.Context, courseID, studentID string) (bool, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	ListStudentsByCourse(ctx context.Context, courseID string, limit int) ([]model.User, error)

	CreateGrade(ctx context.Context, grade model.Grade) error
	GetGrade(ctx context.Context, gradeID string) (model.Grade, error)
	ListGradesByStudent(ctx context.Context, studentID string, limit int) ([]model.Grade, error)
	ListGradesByCourse(ctx context.Context, courseID string, limit int) ([]model.Grade, error)
	UpdateGrade(ctx context.Context, gradeID string, update repository.GradeUpdate) (model.Grade, error)
	DeleteGrade(ctx context.Context, gradeID string) (bool, error)

	CountUsersByRole(ctx context.Context, role model.Role) (int, error)
	CountCourses(ctx context.Context) (int, error)
	CountEnrollmentsByCourse(ctx context.Context, courseID string) (int, error)
}

var _ Store = (*repository.Store)(nil)
