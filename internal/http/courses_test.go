package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"opencampus/api/internal/config"
	"opencampus/api/internal/model"
)

func seedCourse(t *testing.T, store *fakeStore, id, teacherID string) *model.Course {
	t.Helper()
	now := time.Now().UTC()
	course := &model.Course{
		ID:        id,
		Code:      "CS101",
		Title:     "Intro",
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.courses[id] = course
	return course
}

func seedRoster(t *testing.T, cfg config.Config, store *fakeStore) (studentToken, teacherToken, adminToken string) {
	t.Helper()
	seedUser(t, store, "student-1", "student@x.edu", "pass123", model.RoleStudent)
	seedUser(t, store, "teacher-1", "teacher@x.edu", "pass123", model.RoleTeacher)
	seedUser(t, store, "admin-1", "admin@x.edu", "admin123", model.RoleAdmin)
	return mustToken(t, cfg, "student-1", model.RoleStudent),
		mustToken(t, cfg, "teacher-1", model.RoleTeacher),
		mustToken(t, cfg, "admin-1", model.RoleAdmin)
}

func TestCourseCreationPolicy(t *testing.T) {
	cfg := testConfig()
	store, app := newTestServer(t, cfg)
	studentToken, teacherToken, adminToken := seedRoster(t, cfg, store)

	resp := doReq(t, http.MethodPost, app.URL+"/courses/", studentToken, map[string]string{
		"code":  "CS101",
		"title": "Intro",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/courses/", teacherToken, map[string]string{
		"code":  "CS101",
		"title": "Intro",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for teacher, got %d", resp.StatusCode)
	}
	var created courseSummary
	env := decodeEnvelope(t, resp)
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("data decode error: %v", err)
	}
	if created.TeacherID != "teacher-1" {
		t.Fatalf("teacher-created course must belong to the caller, got %s", created.TeacherID)
	}

	// A teacher cannot assign another teacher of record; an admin can.
	resp = doReq(t, http.MethodPost, app.URL+"/courses/", teacherToken, map[string]string{
		"code":      "CS102",
		"title":     "More",
		"teacherId": "someone-else",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for teacher assigning another teacher, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/courses/", adminToken, map[string]string{
		"code":      "CS102",
		"title":     "More",
		"teacherId": "teacher-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d", resp.StatusCode)
	}
}

func TestCourseAccessRequiresEnrollment(t *testing.T) {
	cfg := testConfig()
	store, app := newTestServer(t, cfg)
	studentToken, _, _ := seedRoster(t, cfg, store)
	seedCourse(t, store, "course-1", "teacher-1")

	resp := doReq(t, http.MethodGet, app.URL+"/courses/course-1", studentToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before enrollment, got %d", resp.StatusCode)
	}

	enroll := doReq(t, http.MethodPost, app.URL+"/courses/course-1/enroll", studentToken, nil)
	if enroll.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on self-enroll, got %d", enroll.StatusCode)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/courses/course-1", studentToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after enrollment, got %d", resp.StatusCode)
	}
}

func TestCourseManagementOwnership(t *testing.T) {
	cfg := testConfig()
	store, app := newTestServer(t, cfg)
	_, teacherToken, adminToken := seedRoster(t, cfg, store)
	seedUser(t, store, "teacher-2", "other@x.edu", "pass123", model.RoleTeacher)
	otherToken := mustToken(t, cfg, "teacher-2", model.RoleTeacher)
	seedCourse(t, store, "course-1", "teacher-1")

	resp := doReq(t, http.MethodPatch, app.URL+"/courses/course-1", otherToken, map[string]string{
		"title": "Hijacked",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unrelated teacher, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPatch, app.URL+"/courses/course-1", teacherToken, map[string]string{
		"title": "Renamed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for teacher of record, got %d", resp.StatusCode)
	}
	if store.courses["course-1"].Title != "Renamed" {
		t.Fatalf("title should be updated")
	}

	resp = doReq(t, http.MethodDelete, app.URL+"/courses/course-1", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin delete, got %d", resp.StatusCode)
	}
	if _, ok := store.courses["course-1"]; ok {
		t.Fatalf("course should be deleted")
	}
}

func TestGradeRecordingRequiresEnrollment(t *testing.T) {
	cfg := testConfig()
	store, app := newTestServer(t, cfg)
	studentToken, teacherToken, _ := seedRoster(t, cfg, store)
	seedCourse(t, store, "course-1", "teacher-1")

	grade := map[string]interface{}{
		"studentId": "student-1",
		"title":     "Midterm",
		"score":     15.5,
		"maxScore":  20.0,
	}

	resp := doReq(t, http.MethodPost, app.URL+"/courses/course-1/grades", teacherToken, grade)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unenrolled student, got %d", resp.StatusCode)
	}

	doReq(t, http.MethodPost, app.URL+"/courses/course-1/enroll", studentToken, nil)

	resp = doReq(t, http.MethodPost, app.URL+"/courses/course-1/grades", teacherToken, grade)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 after enrollment, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/courses/course-1/grades", studentToken, grade)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for student recording a grade, got %d", resp.StatusCode)
	}
}

func TestGradeScoreBounds(t *testing.T) {
	cfg := testConfig()
	store, app := newTestServer(t, cfg)
	studentToken, teacherToken, _ := seedRoster(t, cfg, store)
	seedCourse(t, store, "course-1", "teacher-1")
	doReq(t, http.MethodPost, app.URL+"/courses/course-1/enroll", studentToken, nil)

	resp := doReq(t, http.MethodPost, app.URL+"/courses/course-1/grades", teacherToken, map[string]interface{}{
		"studentId": "student-1",
		"title":     "Midterm",
		"score":     25.0,
		"maxScore":  20.0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for score above max, got %d", resp.StatusCode)
	}
}

func TestStudentGradeVisibility(t *testing.T) {
	cfg := testConfig()
	store, app := newTestServer(t, cfg)
	studentToken, _, _ := seedRoster(t, cfg, store)
	seedUser(t, store, "student-2", "two@x.edu", "pass123", model.RoleStudent)

	now := time.Now().UTC()
	store.grades["grade-1"] = &model.Grade{
		ID: "grade-1", CourseID: "course-1", StudentID: "student-1",
		Title: "Quiz", Score: 8, MaxScore: 10, GradedBy: "teacher-1", GradedAt: now,
	}

	resp := doReq(t, http.MethodGet, app.URL+"/grades/me", studentToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var grades []gradeSummary
	env := decodeEnvelope(t, resp)
	if err := json.Unmarshal(env.Data, &grades); err != nil {
		t.Fatalf("data decode error: %v", err)
	}
	if len(grades) != 1 || grades[0].ID != "grade-1" {
		t.Fatalf("expected own grade in listing")
	}

	resp = doReq(t, http.MethodGet, app.URL+"/grades/student/student-2", studentToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for another student's grades, got %d", resp.StatusCode)
	}
}

func TestDashboardByRole(t *testing.T) {
	cfg := testConfig()
	store, app := newTestServer(t, cfg)
	studentToken, teacherToken, adminToken := seedRoster(t, cfg, store)
	seedCourse(t, store, "course-1", "teacher-1")

	for name, token := range map[string]string{
		"student": studentToken,
		"teacher": teacherToken,
		"admin":   adminToken,
	} {
		resp := doReq(t, http.MethodGet, app.URL+"/dashboard", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s dashboard: expected 200, got %d", name, resp.StatusCode)
		}
		var data struct {
			Role model.Role `json:"role"`
		}
		env := decodeEnvelope(t, resp)
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("%s dashboard decode error: %v", name, err)
		}
		if string(data.Role) != name {
			t.Fatalf("expected role %s in payload, got %s", name, data.Role)
		}
	}
}
