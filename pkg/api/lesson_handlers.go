package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// LessonHandlers handles lesson endpoints outside the course nesting
type LessonHandlers struct {
	lessons *postgres.LessonStore
	courses *postgres.CourseStore
	logger  *observability.Logger
}

// NewLessonHandlers creates the lesson handler group
func NewLessonHandlers(lessons *postgres.LessonStore, courses *postgres.CourseStore, logger *observability.Logger) *LessonHandlers {
	return &LessonHandlers{lessons: lessons, courses: courses, logger: logger}
}

// RegisterRoutes registers lesson routes
func (h *LessonHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/lessons/{id}", h.get).Methods("GET")
	router.HandleFunc("/api/lessons/{id}", h.update).Methods("PUT")
	router.HandleFunc("/api/lessons/{id}", h.delete).Methods("DELETE")
}

func (h *LessonHandlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.WriteNotFound(w, "lesson not found")
		return
	}
	h.logger.WithContext(r.Context()).WithError(err).Error("lesson request failed")
	httputil.WriteInternalError(w, err)
}

// ownsParentCourse loads the lesson and checks the caller may modify it:
// the owning teacher or an admin
func (h *LessonHandlers) ownsParentCourse(w http.ResponseWriter, r *http.Request, lessonID int64) (*postgres.Lesson, bool) {
	lesson, err := h.lessons.Get(r.Context(), lessonID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return nil, false
	}
	course, err := h.courses.Get(r.Context(), lesson.CourseID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return nil, false
	}
	if !canActOn(principal(r), course.TeacherID) {
		httputil.WriteForbidden(w, "only the course's teacher may modify its lessons")
		return nil, false
	}
	return lesson, true
}

// get handles GET /api/lessons/{id}
func (h *LessonHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	lesson, err := h.lessons.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	// unpublished lessons are visible only to the course's teacher/admin
	if !lesson.IsPublished {
		course, err := h.courses.Get(r.Context(), lesson.CourseID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		if !canActOn(principal(r), course.TeacherID) {
			httputil.WriteNotFound(w, "lesson not found")
			return
		}
	}
	httputil.WriteData(w, lesson, "lesson")
}

// update handles PUT /api/lessons/{id}; teacher-owns-course or admin
func (h *LessonHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	lesson, ok := h.ownsParentCourse(w, r, id)
	if !ok {
		return
	}

	var req lessonRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(req.Title, "title")) {
		return
	}

	lesson.Title = req.Title
	lesson.ContentURL = req.ContentURL
	lesson.TextContent = req.TextContent
	if req.OrderIndex > 0 {
		lesson.OrderIndex = req.OrderIndex
	}
	lesson.IsPublished = req.IsPublished

	updated, err := h.lessons.Update(r.Context(), lesson)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, updated, "lesson updated")
}

// delete handles DELETE /api/lessons/{id}; teacher-owns-course or admin
func (h *LessonHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.ownsParentCourse(w, r, id); !ok {
		return
	}

	if err := h.lessons.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
