package api

import (
	"net/http"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/middleware"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// createUserRequest is the admin user-creation payload
type createUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     auth.Role `json:"role"`
}

// updateUserRequest carries profile updates
type updateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// changePasswordRequest carries a password change
type changePasswordRequest struct {
	Password string `json:"password"`
}

// changeRoleRequest carries a role change
type changeRoleRequest struct {
	Role auth.Role `json:"role"`
}

// changeStatusRequest enables or disables an account
type changeStatusRequest struct {
	IsActive bool `json:"isActive"`
}

// courseRequest is the create/update course payload
type courseRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Price         float64               `json:"price"`
	DurationHours int                   `json:"durationHours"`
	Status        postgres.CourseStatus `json:"status"`
}

// lessonRequest is the create/update lesson payload
type lessonRequest struct {
	Title       string `json:"title"`
	ContentURL  string `json:"contentUrl"`
	TextContent string `json:"textContent"`
	OrderIndex  int    `json:"orderIndex"`
	IsPublished bool   `json:"isPublished"`
}

// enrollRequest enrolls a student in a course. StudentID is honored for
// admins only; students always enroll themselves.
type enrollRequest struct {
	CourseID  int64 `json:"courseId"`
	StudentID int64 `json:"studentId,omitempty"`
}

// reviewRequest is the review submission payload
type reviewRequest struct {
	CourseID int64  `json:"courseId"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// notificationRequest is the admin notification-creation payload
type notificationRequest struct {
	UserID  int64  `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// logoutRequest optionally names the token to revoke; the request's own
// authorization header is the fallback
type logoutRequest struct {
	Token string `json:"token"`
}

// verifyRequest carries an arbitrary token to verify
type verifyRequest struct {
	Token string `json:"token"`
}

// pagedResponse wraps a list with its pagination window
type pagedResponse struct {
	Items interface{} `json:"items"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Total int         `json:"total"`
}

// principal pulls the authenticated identity off the request; the policy
// layer guarantees it is present on protected routes
func principal(r *http.Request) *auth.Principal {
	return middleware.GetPrincipal(r)
}

// canActOn reports whether p may act on the resource owned by ownerID:
// the owner themself or an admin
func canActOn(p *auth.Principal, ownerID int64) bool {
	return p != nil && (p.IsAdmin() || p.UserID == ownerID)
}
