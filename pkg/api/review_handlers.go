package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// ReviewHandlers handles course review endpoints
type ReviewHandlers struct {
	reviews *postgres.ReviewStore
	courses *postgres.CourseStore
	logger  *observability.Logger
}

// NewReviewHandlers creates the review handler group
func NewReviewHandlers(reviews *postgres.ReviewStore, courses *postgres.CourseStore, logger *observability.Logger) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews, courses: courses, logger: logger}
}

// RegisterRoutes registers review routes
func (h *ReviewHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/reviews", h.create).Methods("POST")
	router.HandleFunc("/api/reviews/course/{courseID}", h.listByCourse).Methods("GET")
	router.HandleFunc("/api/reviews/{id}", h.delete).Methods("DELETE")
}

// create handles POST /api/reviews. Only enrolled students may review, one
// review per course.
func (h *ReviewHandlers) create(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req reviewRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.CourseID == 0 {
		httputil.WriteBadRequest(w, "courseId is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		httputil.WriteBadRequest(w, "rating must be between 1 and 5")
		return
	}

	if _, err := h.courses.Get(r.Context(), req.CourseID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.WriteNotFound(w, "course not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	enrolled, err := h.reviews.HasEnrollment(r.Context(), p.UserID, req.CourseID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !enrolled {
		httputil.WriteForbidden(w, "only enrolled students may review a course")
		return
	}

	created, err := h.reviews.Create(r.Context(), &postgres.Review{
		CourseID:  req.CourseID,
		StudentID: p.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			httputil.WriteConflict(w, "you have already reviewed this course")
			return
		}
		h.logger.WithContext(r.Context()).WithError(err).Error("review request failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, created, "review created")
}

// listByCourse handles GET /api/reviews/course/{courseID}
func (h *ReviewHandlers) listByCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := httputil.ParsePathInt64OrError(w, r, "courseID")
	if !ok {
		return
	}

	reviews, average, err := h.reviews.ListByCourse(r.Context(), courseID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteData(w, map[string]interface{}{
		"reviews":       reviews,
		"averageRating": average,
	}, "reviews")
}

// delete handles DELETE /api/reviews/{id}; the author or an admin
func (h *ReviewHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	owner, err := h.reviews.GetOwner(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.WriteNotFound(w, "review not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	if !canActOn(principal(r), owner) {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	if err := h.reviews.Delete(r.Context(), id); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
