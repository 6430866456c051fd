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

type gradeSummary struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	StudentID string    `json:"studentId"`
	Title     string    `json:"title"`
	Score     float64   `json:"score"`
	MaxScore  float64   `json:"maxScore"`
	GradedBy  string    `json:"gradedBy"`
	GradedAt  time.Time `json:"gradedAt"`
}

func summarizeGrade(grade model.Grade) gradeSummary {
	return gradeSummary{
		ID:        grade.ID,
		CourseID:  grade.CourseID,
		StudentID: grade.StudentID,
		Title:     grade.Title,
		Score:     grade.Score,
		MaxScore:  grade.MaxScore,
		GradedBy:  grade.GradedBy,
		GradedAt:  grade.GradedAt,
	}
}

func summarizeGrades(grades []model.Grade) []gradeSummary {
	summaries := make([]gradeSummary, 0, len(grades))
	for _, grade := range grades {
		summaries = append(summaries, summarizeGrade(grade))
	}
	return summaries
}

type createGradeRequest struct {
	StudentID string  `json:"studentId"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"maxScore"`
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	if !canManageCourse(identity, course) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "Only the course teacher or an admin can record grades.")
		return
	}

	var req createGradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.StudentID == "" || req.Title == "" || req.MaxScore <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Student, title and a positive max score are required.")
		return
	}
	if req.Score < 0 || req.Score > req.MaxScore {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Score must be between 0 and the max score.")
		return
	}

	enrolled, err := s.store.IsEnrolled(r.Context(), course.ID, req.StudentID)
	if err != nil {
		writeServerError(w)
		return
	}
	if !enrolled {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Student is not enrolled in this course.")
		return
	}

	grade := model.Grade{
		ID:        uuid.NewString(),
		CourseID:  course.ID,
		StudentID: req.StudentID,
		Title:     req.Title,
		Score:     req.Score,
		MaxScore:  req.MaxScore,
		GradedBy:  identity.ID,
		GradedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateGrade(r.Context(), grade); err != nil {
		writeServerError(w)
		return
	}
	writeData(w, http.StatusCreated, summarizeGrade(grade))
}

func (s *Server) handleListCourseGrades(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	course, ok := s.loadCourse(w, r)
	if !ok {
		return
	}
	if !canManageCourse(identity, course) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "Only the course teacher or an admin can list course grades.")
		return
	}

	grades, err := s.store.ListGradesByCourse(r.Context(), course.ID, queryLimit(r, 200))
	if err != nil {
		writeServerError(w)
		return
	}
	writeData(w, http.StatusOK, summarizeGrades(grades))
}

func (s *Server) handleListMyGrades(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	grades, err := s.store.ListGradesByStudent(r.Context(), identity.ID, queryLimit(r, 200))
	if err != nil {
		writeServerError(w)
		return
	}
	writeData(w, http.StatusOK, summarizeGrades(grades))
}

func (s *Server) handleListStudentGrades(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	studentID := chi.URLParam(r, "studentID")
	if identity.Role == model.RoleStudent && identity.ID != studentID {
		writeError(w, http.StatusForbidden, codeAccessDenied, "You can only view your own grades.")
		return
	}

	grades, err := s.store.ListGradesByStudent(r.Context(), studentID, queryLimit(r, 200))
	if err != nil {
		writeServerError(w)
		return
	}

	// Teachers only see grades from courses they teach.
	if identity.Role == model.RoleTeacher {
		filtered := grades[:0]
		for _, grade := range grades {
			course, err := s.store.GetCourse(r.Context(), grade.CourseID)
			if err != nil {
				continue
			}
			if course.TeacherID == identity.ID {
				filtered = append(filtered, grade)
			}
		}
		grades = filtered
	}
	writeData(w, http.StatusOK, summarizeGrades(grades))
}

// loadGradeCourse resolves a grade and its course, enforcing the
// teacher-of-record-or-admin policy for mutations.
func (s *Server) loadGradeCourse(w http.ResponseWriter, r *http.Request) (model.Grade, bool) {
	identity, _ := identityFromContext(r.Context())
	gradeID := chi.URLParam(r, "gradeID")

	grade, err := s.store.GetGrade(r.Context(), gradeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "Grade not found.")
			return model.Grade{}, false
		}
		writeServerError(w)
		return model.Grade{}, false
	}

	course, err := s.store.GetCourse(r.Context(), grade.CourseID)
	if err != nil {
		writeServerError(w)
		return model.Grade{}, false
	}
	if !canManageCourse(identity, course) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "Only the course teacher or an admin can modify this grade.")
		return model.Grade{}, false
	}
	return grade, true
}

type updateGradeRequest struct {
	Title    *string  `json:"title,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	MaxScore *float64 `json:"maxScore,omitempty"`
}

func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request) {
	grade, ok := s.loadGradeCourse(w, r)
	if !ok {
		return
	}

	var req updateGradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}

	updated, err := s.store.UpdateGrade(r.Context(), grade.ID, repository.GradeUpdate{
		Title:    req.Title,
		Score:    req.Score,
		MaxScore: req.MaxScore,
	})
	if err != nil {
		writeServerError(w)
		return
	}
	writeData(w, http.StatusOK, summarizeGrade(updated))
}

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	grade, ok := s.loadGradeCourse(w, r)
	if !ok {
		return
	}

	if _, err := s.store.DeleteGrade(r.Context(), grade.ID); err != nil {
		writeServerError(w)
		return
	}
	writeMessage(w, http.StatusOK, "Grade deleted.")
}
