package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"opencampus/api/internal/model"
	"opencampus/api/internal/repository"
)

type courseSummary struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	TeacherID   string    `json:"teacherId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func summarizeCourse(course model.Course) courseSummary {
	return courseSummary{
		ID:          course.ID,
		Code:        course.Code,
		Title:       course.Title,
		Description: course.Description,
		TeacherID:   course.TeacherID,
		CreatedAt:   course.CreatedAt,
	}
}

// handleListCourses scopes the listing to the caller: admins see everything,
// teachers their own courses, students the ones they are enrolled in.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	limit := queryLimit(r, 100)

	var (
		courses []model.Course
		err     error
	)
	switch identity.Role {
	case model.RoleAdmin:
		courses, err = s.store.ListCourses(r.Context(), limit)
	case model.RoleTeacher:
		courses, err = s.store.ListCoursesByTeacher(r.Context(), identity.ID, limit)
	default:
		courses, err = s.store.ListCoursesByStudent(r.Context(), identity.ID, limit)
	}
	if err != nil {
		writeServerError(w)
		return
	}

	summaries := make([]courseSummary, 0, len(courses))
	for _, course := range courses {
		summaries = append(summaries, summarizeCourse(course))
	}
	writeData(w, http.StatusOK, summaries)
}

type createCourseRequest struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TeacherID   string `json:"teacherId,omitempty"`
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Title = strings.TrimSpace(req.Title)
	if req.Code == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Code and title are required.")
		return
	}

	// Teachers create courses for themselves; only admins may assign another
	// teacher of record.
	teacherID := identity.ID
	if req.TeacherID != "" {
		if identity.Role != model.RoleAdmin && req.TeacherID != identity.ID {
			writeError(w, http.StatusForbidden, codeAccessDenied, "Only admins can assign another teacher.")
			return
		}
		teacherID = req.TeacherID
	}

	now := time.Now().UTC()
	course := model.Course{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   teacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCourse(r.Context(), course); err != nil {
		writeServerError(w)
		return
	}
	writeData(w, http.StatusCreated, summarizeCourse(course))
}

// loadCourse fetches the course or writes the 404/500 itself.
func (s *Server) loadCourse(w http.ResponseWriter, r *http.Request) (model.Course, bool) {
	courseID := chi.URLParam(r, "courseID")
	course, err := s.store.GetCourse(r.Context(), courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "Course not found.")
			return model.Course{}, false
		}
		writeServerError(w)
		return model.Course{}, false
	}
	return course, true
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}

	if identity.Role == model.RoleStudent {
		enrolled, err := s.store.IsEnrolled(r.Context(), course.ID, identity.ID)
		if err != nil {
			writeServerError(w)
			return
		}
		if !enrolled {
			writeError(w, http.StatusForbidden, codeAccessDenied, "You are not enrolled in this course.")
			return
		}
	}
	writeData(w, http.StatusOK, summarizeCourse(course))
}

type updateCourseRequest struct {
	Code        *string `json:"code,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	TeacherID   *string `json:"teacherId,omitempty"`
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	if !canManageCourse(identity, course) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "Only the course teacher or an admin can modify this course.")
		return
	}

	var req updateCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}

	update := repository.CourseUpdate{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
	}
	// Reassigning the teacher of record is an admin decision.
	if req.TeacherID != nil && identity.Role == model.RoleAdmin {
		update.TeacherID = req.TeacherID
	}

	updated, err := s.store.UpdateCourse(r.Context(), course.ID, update)
	if err != nil {
		writeServerError(w)
		return
	}
	writeData(w, http.StatusOK, summarizeCourse(updated))
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	if !canManageCourse(identity, course) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "Only the course teacher or an admin can delete this course.")
		return
	}

	if _, err := s.store.DeleteCourse(r.Context(), course.ID); err != nil {
		writeServerError(w)
		return
	}
	writeMessage(w, http.StatusOK, "Course deleted.")
}

type enrollRequest struct {
	StudentID string `json:"studentId,omitempty"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}

	var req enrollRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
			return
		}
	}

	// Students enroll themselves; the course teacher or an admin can enroll
	// any student.
	studentID := identity.ID
	if req.StudentID != "" && req.StudentID != identity.ID {
		if !canManageCourse(identity, course) {
			writeError(w, http.StatusForbidden, codeAccessDenied, "You can only enroll yourself.")
			return
		}
		studentID = req.StudentID
	} else if identity.Role != model.RoleStudent {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "A student id is required.")
		return
	}

	student, err := s.store.GetUserByID(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "Student not found.")
			return
		}
		writeServerError(w)
		return
	}
	if student.Role != model.RoleStudent {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Only students can be enrolled.")
		return
	}

	enrollment := model.Enrollment{
		CourseID:   course.ID,
		StudentID:  studentID,
		EnrolledAt: time.Now().UTC(),
	}
	if err := s.store.Enroll(r.Context(), enrollment); err != nil {
		writeServerError(w)
		return
	}
	writeMessage(w, http.StatusCreated, "Enrolled.")
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}

	studentID := chi.URLParam(r, "studentID")
	if studentID != identity.ID && !canManageCourse(identity, course) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "You can only unenroll yourself.")
		return
	}

	removed, err := s.store.Unenroll(r.Context(), course.ID, studentID)
	if err != nil {
		writeServerError(w)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, codeNotFound, "Enrollment not found.")
		return
	}
	writeMessage(w, http.StatusOK, "Unenrolled.")
}

func (s *Server) handleListCourseStudents(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	if !canManageCourse(identity, course) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "Only the course teacher or an admin can list enrolled students.")
		return
	}

	students, err := s.store.ListStudentsByCourse(r.Context(), course.ID, queryLimit(r, 200))
	if err != nil {
		writeServerError(w)
		return
	}

	summaries := make([]userSummary, 0, len(students))
	for _, student := range students {
		summaries = append(summaries, summarize(student))
	}
	writeData(w, http.StatusOK, summaries)
}
