package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// CourseHandlers handles course endpoints. Creation and modification are
// admin-gated by the policy; lesson creation additionally requires the
// teacher to own the course unless the caller is an admin.
type CourseHandlers struct {
	courses *postgres.CourseStore
	lessons *postgres.LessonStore
	logger  *observability.Logger
}

// NewCourseHandlers creates the course handler group
func NewCourseHandlers(courses *postgres.CourseStore, lessons *postgres.LessonStore, logger *observability.Logger) *CourseHandlers {
	return &CourseHandlers{courses: courses, lessons: lessons, logger: logger}
}

// RegisterRoutes registers course routes
func (h *CourseHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/courses", h.list).Methods("GET")
	router.HandleFunc("/api/courses", h.create).Methods("POST")
	router.HandleFunc("/api/courses/search", h.search).Methods("GET")
	router.HandleFunc("/api/courses/by-teacher/{teacherID}", h.listByTeacher).Methods("GET")
	router.HandleFunc("/api/courses/{id}", h.get).Methods("GET")
	router.HandleFunc("/api/courses/{id}", h.update).Methods("PUT")
	router.HandleFunc("/api/courses/{id}", h.delete).Methods("DELETE")
	router.HandleFunc("/api/courses/{id}/lessons", h.listLessons).Methods("GET")
	router.HandleFunc("/api/courses/{id}/lessons", h.createLesson).Methods("POST")
}

func (h *CourseHandlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.WriteNotFound(w, "course not found")
		return
	}
	h.logger.WithContext(r.Context()).WithError(err).Error("course request failed")
	httputil.WriteInternalError(w, err)
}

// parseFilter reads the shared listing filters: status, keyword (the
// "search" parameter wins over "keyword") and teacher_id
func parseFilter(w http.ResponseWriter, r *http.Request) (postgres.CourseFilter, bool) {
	status := postgres.CourseStatus(httputil.ParseQueryString(r, "status", ""))
	if status != "" && !status.Valid() {
		httputil.WriteBadRequest(w, "unknown course status")
		return postgres.CourseFilter{}, false
	}

	keyword := httputil.ParseQueryString(r, "search", "")
	if keyword == "" {
		keyword = httputil.ParseQueryString(r, "keyword", "")
	}

	teacherID, err := httputil.ParseQueryInt(r, "teacher_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return postgres.CourseFilter{}, false
	}

	return postgres.CourseFilter{Status: status, Keyword: keyword, TeacherID: int64(teacherID)}, true
}

func (h *CourseHandlers) listFiltered(w http.ResponseWriter, r *http.Request, filter postgres.CourseFilter) {
	page := httputil.ParsePagination(r)
	courses, total, err := h.courses.List(r.Context(), filter, page.Size, page.Offset())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, pagedResponse{Items: courses, Page: page.Page, Size: page.Size, Total: total}, "courses")
}

// list handles GET /api/courses with optional ?status=, ?keyword= and
// ?teacher_id= filters
func (h *CourseHandlers) list(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	h.listFiltered(w, r, filter)
}

// search handles GET /api/courses/search. Unlike list, the keyword is
// mandatory.
func (h *CourseHandlers) search(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	if filter.Keyword == "" {
		httputil.WriteBadRequest(w, "search keyword is required")
		return
	}
	h.listFiltered(w, r, filter)
}

// listByTeacher handles GET /api/courses/by-teacher/{teacherID}
func (h *CourseHandlers) listByTeacher(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := httputil.ParsePathInt64OrError(w, r, "teacherID")
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.TeacherID = teacherID
	h.listFiltered(w, r, filter)
}

// create handles POST /api/courses (admin only via policy). The creating
// admin names themself as the course teacher unless teacherId is given.
func (h *CourseHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		courseRequest
		TeacherID int64 `json:"teacherId"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(req.Title, "title")) {
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		httputil.WriteBadRequest(w, "unknown course status")
		return
	}

	teacherID := req.TeacherID
	if teacherID == 0 {
		teacherID = principal(r).UserID
	}

	created, err := h.courses.Create(r.Context(), &postgres.Course{
		Title:         req.Title,
		Description:   req.Description,
		TeacherID:     teacherID,
		Price:         req.Price,
		DurationHours: req.DurationHours,
		Status:        req.Status,
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, created, "course created")
}

// get handles GET /api/courses/{id}
func (h *CourseHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	course, err := h.courses.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, course, "course")
}

// update handles PUT /api/courses/{id} (admin only via policy)
func (h *CourseHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req courseRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(req.Title, "title")) {
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		httputil.WriteBadRequest(w, "unknown course status")
		return
	}

	updated, err := h.courses.Update(r.Context(), &postgres.Course{
		ID:            id,
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		DurationHours: req.DurationHours,
		Status:        req.Status,
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, updated, "course updated")
}

// delete handles DELETE /api/courses/{id} (admin only via policy)
func (h *CourseHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.courses.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listLessons handles GET /api/courses/{id}/lessons. Students see only
// published lessons; the course's teacher and admins see everything.
func (h *CourseHandlers) listLessons(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	course, err := h.courses.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	publishedOnly := !canActOn(principal(r), course.TeacherID)
	lessons, err := h.lessons.ListByCourse(r.Context(), id, publishedOnly)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, lessons, "lessons")
}

// createLesson handles POST /api/courses/{id}/lessons. The policy admits
// teachers and admins; a teacher must own the course.
func (h *CourseHandlers) createLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	course, err := h.courses.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !canActOn(principal(r), course.TeacherID) {
		httputil.WriteForbidden(w, "only the course's teacher may add lessons")
		return
	}

	var req lessonRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(req.Title, "title")) {
		return
	}

	created, err := h.lessons.Create(r.Context(), &postgres.Lesson{
		CourseID:    id,
		Title:       req.Title,
		ContentURL:  req.ContentURL,
		TextContent: req.TextContent,
		OrderIndex:  req.OrderIndex,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, created, "lesson created")
}
