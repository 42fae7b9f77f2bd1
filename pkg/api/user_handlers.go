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

// UserHandlers handles user administration endpoints. The policy gates the
// role class; self-or-admin ownership is checked here.
type UserHandlers struct {
	users  *postgres.UserStore
	hasher *auth.PasswordHasher
	logger *observability.Logger
}

// NewUserHandlers creates the user handler group
func NewUserHandlers(users *postgres.UserStore, hasher *auth.PasswordHasher, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{users: users, hasher: hasher, logger: logger}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/users", h.list).Methods("GET")
	router.HandleFunc("/api/users", h.create).Methods("POST")
	router.HandleFunc("/api/users/{id}", h.get).Methods("GET")
	router.HandleFunc("/api/users/{id}", h.update).Methods("PUT")
	router.HandleFunc("/api/users/{id}", h.delete).Methods("DELETE")
	router.HandleFunc("/api/users/{id}/password", h.changePassword).Methods("PUT")
	router.HandleFunc("/api/users/{id}/role", h.changeRole).Methods("PUT")
	router.HandleFunc("/api/users/{id}/status", h.changeStatus).Methods("PUT")
}

func (h *UserHandlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		httputil.WriteNotFound(w, "user not found")
	case errors.Is(err, auth.ErrDuplicateIdentity):
		httputil.WriteConflict(w, err.Error())
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error("user request failed")
		httputil.WriteInternalError(w, err)
	}
}

// list handles GET /api/users (admin only via policy)
func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePagination(r)

	users, total, err := h.users.List(r.Context(), page.Size, page.Offset())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	views := make([]*auth.PrincipalView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	httputil.WriteData(w, pagedResponse{Items: views, Page: page.Page, Size: page.Size, Total: total}, "users")
}

// create handles POST /api/users (admin only via policy). Unlike public
// registration, the role is caller-chosen.
func (h *UserHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		httputil.RequireNonEmpty(req.Username, "username"),
		httputil.RequireNonEmpty(req.Password, "password"),
		httputil.RequireNonEmpty(req.Email, "email"),
	) {
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleStudent
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	created, err := h.users.Create(r.Context(), &auth.User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		IsActive:     true,
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, created.View(), "user created")
}

// get handles GET /api/users/{id}; a user may read themself, admins anyone
func (h *UserHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !canActOn(principal(r), id) {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, user.View(), "user")
}

// update handles PUT /api/users/{id}; self-or-admin
func (h *UserHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !canActOn(principal(r), id) {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	var req updateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(req.Email, "email")) {
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), id, req.Email, req.FullName)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, updated.View(), "user updated")
}

// changePassword handles PUT /api/users/{id}/password; self-or-admin
func (h *UserHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !canActOn(principal(r), id) {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	var req changePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(req.Password, "password")) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if err := h.users.UpdatePassword(r.Context(), id, hash); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, nil, "password changed")
}

// changeRole handles PUT /api/users/{id}/role (admin only via policy)
func (h *UserHandlers) changeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req changeRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	if err := h.users.UpdateRole(r.Context(), id, req.Role); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, nil, "role updated")
}

// changeStatus handles PUT /api/users/{id}/status (admin only via policy)
func (h *UserHandlers) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req changeStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.users.UpdateStatus(r.Context(), id, req.IsActive); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteData(w, nil, "status updated")
}

// delete handles DELETE /api/users/{id} (admin only via policy). Deletion
// is a soft delete: the account is disabled and fails authentication from
// then on.
func (h *UserHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.users.UpdateStatus(r.Context(), id, false); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
