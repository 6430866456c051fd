package http

import (
	"net/http"

	"opencampus/api/internal/model"
)

// handleDashboard dispatches through a table keyed by the role tag, so adding
// a role to the enum forces a decision here instead of falling through a
// conditional chain.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	dispatch := map[model.Role]func(http.ResponseWriter, *http.Request, model.User){
		model.RoleStudent: s.studentDashboard,
		model.RoleTeacher: s.teacherDashboard,
		model.RoleAdmin:   s.adminDashboard,
	}
	handler, ok := dispatch[identity.Role]
	if !ok {
		writeError(w, http.StatusForbidden, codeInsufficientRole, "Unknown role.")
		return
	}
	handler(w, r, identity)
}

func (s *Server) studentDashboard(w http.ResponseWriter, r *http.Request, identity model.User) {
	courses, err := s.store.ListCoursesByStudent(r.Context(), identity.ID, 100)
	if err != nil {
		writeServerError(w)
		return
	}
	grades, err := s.store.ListGradesByStudent(r.Context(), identity.ID, 100)
	if err != nil {
		writeServerError(w)
		return
	}

	courseSummaries := make([]courseSummary, 0, len(courses))
	for _, course := range courses {
		courseSummaries = append(courseSummaries, summarizeCourse(course))
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"role":    model.RoleStudent,
		"courses": courseSummaries,
		"grades":  summarizeGrades(grades),
	})
}

func (s *Server) teacherDashboard(w http.ResponseWriter, r *http.Request, identity model.User) {
	courses, err := s.store.ListCoursesByTeacher(r.Context(), identity.ID, 100)
	if err != nil {
		writeServerError(w)
		return
	}

	type courseWithCount struct {
		courseSummary
		EnrolledCount int `json:"enrolledCount"`
	}
	summaries := make([]courseWithCount, 0, len(courses))
	for _, course := range courses {
		count, err := s.store.CountEnrollmentsByCourse(r.Context(), course.ID)
		if err != nil {
			writeServerError(w)
			return
		}
		summaries = append(summaries, courseWithCount{
			courseSummary: summarizeCourse(course),
			EnrolledCount: count,
		})
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"role":    model.RoleTeacher,
		"courses": summaries,
	})
}

func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request, _ model.User) {
	students, err := s.store.CountUsersByRole(r.Context(), model.RoleStudent)
	if err != nil {
		writeServerError(w)
		return
	}
	teachers, err := s.store.CountUsersByRole(r.Context(), model.RoleTeacher)
	if err != nil {
		writeServerError(w)
		return
	}
	admins, err := s.store.CountUsersByRole(r.Context(), model.RoleAdmin)
	if err != nil {
		writeServerError(w)
		return
	}
	courses, err := s.store.CountCourses(r.Context())
	if err != nil {
		writeServerError(w)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"role":     model.RoleAdmin,
		"students": students,
		"teachers": teachers,
		"admins":   admins,
		"courses":  courses,
	})
}
