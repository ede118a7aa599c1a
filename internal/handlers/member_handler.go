package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gianverdum/member-registry/internal/models"
	"github.com/gianverdum/member-registry/internal/services"
	"github.com/gianverdum/member-registry/internal/utils"
	apierrors "github.com/gianverdum/member-registry/pkg/errors"
)

// Messages for requests rejected before they reach the service
const (
	MsgInvalidJSON     = "Invalid JSON input"
	MsgInvalidMemberID = "Invalid member id"
	MsgStringExpected  = "Input should be a valid string"
)

// MemberService is the subset of services.MemberService used over HTTP
type MemberService interface {
	CreateMember(ctx context.Context, req models.MemberRequest) (*models.MemberResponse, error)
	ListMembers(ctx context.Context, filter models.MemberFilter) ([]models.MemberResponse, error)
	GetMember(ctx context.Context, id uint) (*models.MemberResponse, error)
	UpdateMember(ctx context.Context, id uint, patch models.MemberPatch) (*models.MemberResponse, error)
	DeleteMember(ctx context.Context, id uint) error
}

// MemberHandler serves the /members resource
type MemberHandler struct {
	service MemberService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(service MemberService) *MemberHandler {
	return &MemberHandler{service: service}
}

// Routes mounts the member endpoints on r
func (h *MemberHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateMember)
	r.Get("/", h.ListMembers)
	r.Get("/{id}", h.GetMember)
	r.Put("/{id}", h.UpdateMember)
	r.Delete("/{id}", h.DeleteMember)
}

// CreateMember handles POST /members
func (h *MemberHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req models.MemberRequest
	if err := utils.ParseJSONRequest(r, &req); err != nil {
		utils.RespondWithAPIError(w, r, decodeError(err))
		return
	}

	member, err := h.service.CreateMember(r.Context(), req)
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, member)
}

// ListMembers handles GET /members
func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}

	members, err := h.service.ListMembers(r.Context(), filter)
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, members)
}

// GetMember handles GET /members/{id}
func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, member)
}

// UpdateMember handles PUT /members/{id}
func (h *MemberHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}

	var patch models.MemberPatch
	if err := utils.ParseJSONRequest(r, &patch); err != nil {
		utils.RespondWithAPIError(w, r, decodeError(err))
		return
	}

	member, err := h.service.UpdateMember(r.Context(), id, patch)
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, member)
}

// DeleteMember handles DELETE /members/{id}
func (h *MemberHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}

	if err := h.service.DeleteMember(r.Context(), id); err != nil {
		utils.RespondWithAPIError(w, r, err)
		return
	}
	utils.RespondNoContent(w)
}

func memberID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil {
		return 0, apierrors.BadRequestErrorWithCause(MsgInvalidMemberID, err)
	}
	return uint(id), nil
}

func parseFilter(q url.Values) (models.MemberFilter, error) {
	filter := models.MemberFilter{
		Name:  q.Get("name"),
		Club:  q.Get("club"),
		Phone: q.Get("phone"),
	}

	var err error
	if filter.Limit, err = nonNegativeInt(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = nonNegativeInt(q, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func nonNegativeInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apierrors.BadRequestError(key + " must be a non-negative integer")
	}
	return n, nil
}

// decodeError turns a body decode failure into a 422 when a field has the
// wrong JSON type and a 400 for anything else
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apierrors.ValidationError(services.MsgValidationFailed, []apierrors.FieldError{
			{Field: typeErr.Field, Message: MsgStringExpected},
		})
	}
	return apierrors.BadRequestErrorWithCause(MsgInvalidJSON, err)
}
