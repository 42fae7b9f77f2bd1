package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/httputil"
	"github.com/coursehub-io/coursehub/pkg/middleware"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// Server owns the router and the middleware chain
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// ServerConfig carries the server's collaborators
type ServerConfig struct {
	AuthService   *auth.Service
	Authenticator *middleware.Authenticator
	Policy        *middleware.Policy
	Users         *postgres.UserStore
	Courses       *postgres.CourseStore
	Lessons       *postgres.LessonStore
	Enrollments   *postgres.EnrollmentStore
	Reviews       *postgres.ReviewStore
	Notifications *postgres.NotificationStore
	Reports       *postgres.ReportStore
	Hasher        *auth.PasswordHasher
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	MaxBodyBytes  int64
}

// NewServer builds the router, registers every handler group and assembles
// the middleware chain. Order matters: request id and logging wrap
// everything, authentication runs before the policy, the policy before any
// handler.
func NewServer(cfg ServerConfig) *Server {
	router := mux.NewRouter()

	authHandlers := NewAuthHandlers(cfg.AuthService, cfg.Logger)
	authHandlers.RegisterRoutes(router)

	userHandlers := NewUserHandlers(cfg.Users, cfg.Hasher, cfg.Logger)
	userHandlers.RegisterRoutes(router)

	courseHandlers := NewCourseHandlers(cfg.Courses, cfg.Lessons, cfg.Logger)
	courseHandlers.RegisterRoutes(router)

	lessonHandlers := NewLessonHandlers(cfg.Lessons, cfg.Courses, cfg.Logger)
	lessonHandlers.RegisterRoutes(router)

	enrollmentHandlers := NewEnrollmentHandlers(cfg.Enrollments, cfg.Courses, cfg.Lessons, cfg.Notifications, cfg.Logger)
	enrollmentHandlers.RegisterRoutes(router)

	reviewHandlers := NewReviewHandlers(cfg.Reviews, cfg.Courses, cfg.Logger)
	reviewHandlers.RegisterRoutes(router)

	notificationHandlers := NewNotificationHandlers(cfg.Notifications, cfg.Users, cfg.Logger)
	notificationHandlers.RegisterRoutes(router)

	reportHandlers := NewReportHandlers(cfg.Reports, cfg.Users, cfg.Logger)
	reportHandlers.RegisterRoutes(router)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "route not found")
	})

	// runs after route matching, so the metric label is the route template
	// rather than a high-cardinality concrete path
	if cfg.Metrics != nil {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path := r.URL.Path
				if route := mux.CurrentRoute(r); route != nil {
					if template, err := route.GetPathTemplate(); err == nil {
						path = template
					}
				}
				cfg.Metrics.InstrumentHandler(path, next).ServeHTTP(w, r)
			})
		})
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(cfg.Logger),
		httputil.RecoveryMiddleware(cfg.Logger),
		httputil.MaxBytesMiddleware(maxBody),
		httputil.ContentTypeMiddleware,
		cfg.Authenticator.Handler,
		cfg.Policy.Handler,
	)

	return &Server{
		router:  router,
		handler: chain(router),
		logger:  cfg.Logger,
	}
}

// ServeHTTP satisfies http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the bare router, used in tests
func (s *Server) Router() *mux.Router {
	return s.router
}
