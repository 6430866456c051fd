package repository

import (
	"context"

	"opencampus/api/internal/model"
)

func (s *Store) CreateCourse(ctx context.Context, course model.Course) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courses (id, code, title, description, teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, course.ID, course.Code, course.Title, course.Description, course.TeacherID, course.CreatedAt, course.UpdatedAt)
	return err
}

func (s *Store) GetCourse(ctx context.Context, courseID string) (model.Course, error) {
	var course model.Course
	row := s.pool.QueryRow(ctx, `
		SELECT id, code, title, description, teacher_id, created_at, updated_at
		FROM courses
		WHERE id = $1
	`, courseID)
	err := row.Scan(&course.ID, &course.Code, &course.Title, &course.Description, &course.TeacherID, &course.CreatedAt, &course.UpdatedAt)
	return course, err
}

func (s *Store) ListCourses(ctx context.Context, limit int) ([]model.Course, error) {
	return s.queryCourses(ctx, `
		SELECT id, code, title, description, teacher_id, created_at, updated_at
		FROM courses
		ORDER BY created_at
		LIMIT $1
	`, limit)
}

func (s *Store) ListCoursesByTeacher(ctx context.Context, teacherID string, limit int) ([]model.Course, error) {
	return s.queryCourses(ctx, `
		SELECT id, code, title, description, teacher_id, created_at, updated_at
		FROM courses
		WHERE teacher_id = $1
		ORDER BY created_at
		LIMIT $2
	`, teacherID, limit)
}

func (s *Store) ListCoursesByStudent(ctx context.Context, studentID string, limit int) ([]model.Course, error) {
	return s.queryCourses(ctx, `
		SELECT c.id, c.code, c.title, c.description, c.teacher_id, c.created_at, c.updated_at
		FROM courses c
		JOIN enrollments e ON e.course_id = c.id
		WHERE e.student_id = $1
		ORDER BY c.created_at
		LIMIT $2
	`, studentID, limit)
}

func (s *Store) queryCourses(ctx context.Context, query string, args ...interface{}) ([]model.Course, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var course model.Course
		if err := rows.Scan(&course.ID, &course.Code, &course.Title, &course.Description, &course.TeacherID, &course.CreatedAt, &course.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

type CourseUpdate struct {
	Code        *string
	Title       *string
	Description *string
	TeacherID   *string
}

func (s *Store) UpdateCourse(ctx context.Context, courseID string, update CourseUpdate) (model.Course, error) {
	var course model.Course
	row := s.pool.QueryRow(ctx, `
		UPDATE courses
		SET code = COALESCE($2, code),
		    title = COALESCE($3, title),
		    description = COALESCE($4, description),
		    teacher_id = COALESCE($5, teacher_id),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, code, title, description, teacher_id, created_at, updated_at
	`, courseID, update.Code, update.Title, update.Description, update.TeacherID)
	err := row.Scan(&course.ID, &course.Code, &course.Title, &course.Description, &course.TeacherID, &course.CreatedAt, &course.UpdatedAt)
	return course, err
}

func (s *Store) DeleteCourse(ctx context.Context, courseID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, courseID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Enroll(ctx context.Context, enrollment model.Enrollment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrollments (course_id, student_id, enrolled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id, student_id) DO NOTHING
	`, enrollment.CourseID, enrollment.StudentID, enrollment.EnrolledAt)
	return err
}

func (s *Store) Unenroll(ctx context.Context, courseID, studentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM enrollments WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var enrolled bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2)
	`, courseID, studentID).Scan(&enrolled)
	return enrolled, err
}

func (s *Store) ListStudentsByCourse(ctx context.Context, courseID string, limit int) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.active,
		       u.failed_attempts, u.lock_until, u.two_factor_secret, u.last_login_at, u.last_login_ip,
		       u.created_at, u.updated_at
		FROM users u
		JOIN enrollments e ON e.student_id = u.id
		WHERE e.course_id = $1
		ORDER BY u.last_name, u.first_name
		LIMIT $2
	`, courseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.User
	for rows.Next() {
		student, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *Store) CreateGrade(ctx context.Context, grade model.Grade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO grades (id, course_id, student_id, title, score, max_score, graded_by, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, grade.ID, grade.CourseID, grade.StudentID, grade.Title, grade.Score, grade.MaxScore, grade.GradedBy, grade.GradedAt)
	return err
}

func (s *Store) GetGrade(ctx context.Context, gradeID string) (model.Grade, error) {
	var grade model.Grade
	row := s.pool.QueryRow(ctx, `
		SELECT id, course_id, student_id, title, score, max_score, graded_by, graded_at
		FROM grades
		WHERE id = $1
	`, gradeID)
	err := row.Scan(&grade.ID, &grade.CourseID, &grade.StudentID, &grade.Title, &grade.Score, &grade.MaxScore, &grade.GradedBy, &grade.GradedAt)
	return grade, err
}

func (s *Store) ListGradesByStudent(ctx context.Context, studentID string, limit int) ([]model.Grade, error) {
	return s.queryGrades(ctx, `
		SELECT id, course_id, student_id, title, score, max_score, graded_by, graded_at
		FROM grades
		WHERE student_id = $1
		ORDER BY graded_at DESC
		LIMIT $2
	`, studentID, limit)
}

func (s *Store) ListGradesByCourse(ctx context.Context, courseID string, limit int) ([]model.Grade, error) {
	return s.queryGrades(ctx, `
		SELECT id, course_id, student_id, title, score, max_score, graded_by, graded_at
		FROM grades
		WHERE course_id = $1
		ORDER BY graded_at DESC
		LIMIT $2
	`, courseID, limit)
}

func (s *Store) queryGrades(ctx context.Context, query string, args ...interface{}) ([]model.Grade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []model.Grade
	for rows.Next() {
		var grade model.Grade
		if err := rows.Scan(&grade.ID, &grade.CourseID, &grade.StudentID, &grade.Title, &grade.Score, &grade.MaxScore, &grade.GradedBy, &grade.GradedAt); err != nil {
			return nil, err
		}
		grades = append(grades, grade)
	}
	return grades, rows.Err()
}

type GradeUpdate struct {
	Title    *string
	Score    *float64
	MaxScore *float64
}

func (s *Store) UpdateGrade(ctx context.Context, gradeID string, update GradeUpdate) (model.Grade, error) {
	var grade model.Grade
	row := s.pool.QueryRow(ctx, `
		UPDATE grades
		SET title = COALESCE($2, title),
		    score = COALESCE($3, score),
		    max_score = COALESCE($4, max_score)
		WHERE id = $1
		RETURNING id, course_id, student_id, title, score, max_score, graded_by, graded_at
	`, gradeID, update.Title, update.Score, update.MaxScore)
	err := row.Scan(&grade.ID, &grade.CourseID, &grade.StudentID, &grade.Title, &grade.Score, &grade.MaxScore, &grade.GradedBy, &grade.GradedAt)
	return grade, err
}

func (s *Store) DeleteGrade(ctx context.Context, gradeID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM grades WHERE id = $1`, gradeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Dashboard counts.

func (s *Store) CountUsersByRole(ctx context.Context, role model.Role) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE role = $1`, role).Scan(&count)
	return count, err
}

func (s *Store) CountCourses(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM courses`).Scan(&count)
	return count, err
}

func (s *Store) CountEnrollmentsByCourse(ctx context.Context, courseID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM enrollments WHERE course_id = $1`, courseID).Scan(&count)
	return count, err
}
