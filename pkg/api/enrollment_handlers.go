package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// EnrollmentHandlers handles enrollment and lesson-progress endpoints. The
// policy admits students and admins; a student may only touch their own
// enrollments.
type EnrollmentHandlers struct {
	enrollments   *postgres.EnrollmentStore
	courses       *postgres.CourseStore
	lessons       *postgres.LessonStore
	notifications *postgres.NotificationStore
	logger        *observability.Logger
}

// NewEnrollmentHandlers creates the enrollment handler group
func NewEnrollmentHandlers(enrollments *postgres.EnrollmentStore, courses *postgres.CourseStore, lessons *postgres.LessonStore, notifications *postgres.NotificationStore, logger *observability.Logger) *EnrollmentHandlers {
	return &EnrollmentHandlers{
		enrollments:   enrollments,
		courses:       courses,
		lessons:       lessons,
		notifications: notifications,
		logger:        logger,
	}
}

// RegisterRoutes registers enrollment routes
func (h *EnrollmentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/enrollments", h.list).Methods("GET")
	router.HandleFunc("/api/enrollments", h.create).Methods("POST")
	router.HandleFunc("/api/enrollments/{id}", h.get).Methods("GET")
	router.HandleFunc("/api/enrollments/{id}/progress", h.progress).Methods("GET")
	router.HandleFunc("/api/enrollments/{id}/complete_lesson/{lessonID}", h.completeLesson).Methods("PUT")
}

func (h *EnrollmentHandlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		httputil.WriteNotFound(w, "enrollment not found")
	case errors.Is(err, postgres.ErrDuplicate):
		httputil.WriteConflict(w, "student is already enrolled in this course")
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error("enrollment request failed")
		httputil.WriteInternalError(w, err)
	}
}

// notify records a notification; failures are logged, never surfaced
func (h *EnrollmentHandlers) notify(r *http.Request, userID int64, title, message string) {
	if _, err := h.notifications.Create(r.Context(), userID, title, message); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("failed to create notification")
	}
}

// list handles GET /api/enrollments. Students see their own; admins may
// inspect any student via ?student_id=.
func (h *EnrollmentHandlers) list(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	studentID := p.UserID
	if p.IsAdmin() {
		if override, err := httputil.ParseQueryInt(r, "student_id", 0); err == nil && override > 0 {
			studentID = int64(override)
		}
	}

	enrollments, err := h.enrollments.ListByStudent(r.Context(), studentID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, enrollments, "enrollments")
}

// create handles POST /api/enrollments. Students enroll themselves; admins
// may enroll any student. Only published courses accept enrollments.
func (h *EnrollmentHandlers) create(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req enrollRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.CourseID == 0 {
		httputil.WriteBadRequest(w, "courseId is required")
		return
	}

	studentID := p.UserID
	if req.StudentID != 0 && req.StudentID != p.UserID {
		if !p.IsAdmin() {
			httputil.WriteForbidden(w, "students may only enroll themselves")
			return
		}
		studentID = req.StudentID
	}

	course, err := h.courses.Get(r.Context(), req.CourseID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.WriteNotFound(w, "course not found")
			return
		}
		h.writeStoreError(w, r, err)
		return
	}
	if course.Status != postgres.CoursePublished {
		httputil.WriteBadRequest(w, "course is not open for enrollment")
		return
	}

	enrollment, err := h.enrollments.Create(r.Context(), studentID, course.ID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.notify(r, studentID, "Enrolled",
		fmt.Sprintf("You are enrolled in %q.", course.Title))

	httputil.WriteCreated(w, enrollment, "enrolled")
}

// loadOwned fetches an enrollment and enforces own-or-admin access
func (h *EnrollmentHandlers) loadOwned(w http.ResponseWriter, r *http.Request) (*postgres.Enrollment, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}

	enrollment, err := h.enrollments.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return nil, false
	}
	if !canActOn(principal(r), enrollment.StudentID) {
		httputil.WriteForbidden(w, "insufficient permissions")
		return nil, false
	}
	return enrollment, true
}

// get handles GET /api/enrollments/{id}; own-or-admin
func (h *EnrollmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	enrollment, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, enrollment, "enrollment")
}

// progress handles GET /api/enrollments/{id}/progress; own-or-admin
func (h *EnrollmentHandlers) progress(w http.ResponseWriter, r *http.Request) {
	enrollment, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	progress, err := h.enrollments.ListProgress(r.Context(), enrollment.ID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, progress, "lesson progress")
}

// completeLesson handles PUT /api/enrollments/{id}/complete_lesson/{lessonID}.
// The lesson must be a published lesson of the enrollment's course.
// Completing the last one completes the enrollment and notifies the
// student.
func (h *EnrollmentHandlers) completeLesson(w http.ResponseWriter, r *http.Request) {
	enrollment, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	lessonID, ok := httputil.ParsePathInt64OrError(w, r, "lessonID")
	if !ok {
		return
	}

	lesson, err := h.lessons.Get(r.Context(), lessonID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.WriteNotFound(w, "lesson not found")
			return
		}
		h.writeStoreError(w, r, err)
		return
	}
	if lesson.CourseID != enrollment.CourseID {
		httputil.WriteBadRequest(w, "lesson does not belong to the enrolled course")
		return
	}
	if !lesson.IsPublished {
		httputil.WriteBadRequest(w, "lesson is not published")
		return
	}

	wasCompleted := enrollment.Status == postgres.EnrollmentCompleted

	updated, err := h.enrollments.CompleteLesson(r.Context(), enrollment.ID, lessonID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	if !wasCompleted && updated.Status == postgres.EnrollmentCompleted {
		title := "course"
		if course, err := h.courses.Get(r.Context(), updated.CourseID); err == nil {
			title = fmt.Sprintf("%q", course.Title)
		}
		h.notify(r, updated.StudentID, "Course completed",
			fmt.Sprintf("Congratulations, you completed %s.", title))
	}

	httputil.WriteData(w, updated, "lesson completed")
}
