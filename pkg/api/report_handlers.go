package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// ReportHandlers serves the admin reporting endpoints. The policy gates the
// whole group to admins.
type ReportHandlers struct {
	reports *postgres.ReportStore
	users   *postgres.UserStore
	logger  *observability.Logger
}

// NewReportHandlers creates the report handler group
func NewReportHandlers(reports *postgres.ReportStore, users *postgres.UserStore, logger *observability.Logger) *ReportHandlers {
	return &ReportHandlers{reports: reports, users: users, logger: logger}
}

// RegisterRoutes registers report routes
func (h *ReportHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/reports/student_progress/{id}", h.studentProgress).Methods("GET")
	router.HandleFunc("/api/reports/teacher_courses_overview/{id}", h.teacherOverview).Methods("GET")
}

// loadSubject resolves the {id} path parameter to a user holding the
// required role. A user of any other role is reported as not found.
func (h *ReportHandlers) loadSubject(w http.ResponseWriter, r *http.Request, role auth.Role, label string) (*auth.User, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			httputil.WriteNotFound(w, label+" not found")
			return nil, false
		}
		h.logger.WithContext(r.Context()).WithError(err).Error("report request failed")
		httputil.WriteInternalError(w, err)
		return nil, false
	}
	if user.Role != role {
		httputil.WriteNotFound(w, label+" not found")
		return nil, false
	}
	return user, true
}

// studentProgress handles GET /api/reports/student_progress/{id}
func (h *ReportHandlers) studentProgress(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadSubject(w, r, auth.RoleStudent, "student")
	if !ok {
		return
	}

	report, err := h.reports.StudentProgress(r.Context(), student.ID)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("report request failed")
		httputil.WriteInternalError(w, err)
		return
	}
	report.StudentName = student.FullName
	report.StudentEmail = student.Email

	httputil.WriteData(w, report, "student progress report")
}

// teacherOverview handles GET /api/reports/teacher_courses_overview/{id}
func (h *ReportHandlers) teacherOverview(w http.ResponseWriter, r *http.Request) {
	teacher, ok := h.loadSubject(w, r, auth.RoleTeacher, "teacher")
	if !ok {
		return
	}

	overview, err := h.reports.TeacherOverview(r.Context(), teacher.ID)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("report request failed")
		httputil.WriteInternalError(w, err)
		return
	}
	overview.TeacherName = teacher.FullName
	overview.TeacherEmail = teacher.Email
	overview.CreatedAt = teacher.CreatedAt

	httputil.WriteData(w, overview, "teacher courses overview")
}
