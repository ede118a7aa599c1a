package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gianverdum/member-registry/internal/audit"
	"github.com/gianverdum/member-registry/internal/cache"
	"github.com/gianverdum/member-registry/internal/models"
	"github.com/gianverdum/member-registry/internal/repository"
	"github.com/gianverdum/member-registry/internal/utils"
	apierrors "github.com/gianverdum/member-registry/pkg/errors"
)

// User-facing messages
const (
	MsgValidationFailed = "Validation failed"
	MsgMemberNotFound   = "Member not found"
	MsgPhoneExists      = "Phone number already exists"
)

// Business event outcomes
const (
	outcomeSuccess   = "success"
	outcomeInvalid   = "validation_failed"
	outcomeDuplicate = "duplicate_phone"
	outcomeNotFound  = "not_found"
	outcomeError     = "error"
)

// Recorder receives business and storage call metrics
type Recorder interface {
	RecordBusinessEvent(action, outcome string)
	RecordExternalCall(target, operation string, duration time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordBusinessEvent(string, string) {}
func (noopRecorder) RecordExternalCall(string, string, time.Duration, error) {}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, audit.Event) {}
func (noopAuditor) IsEnabled() bool { return false }

// MemberService handles member operations: validation, persistence,
// error classification and best-effort side effects
type MemberService struct {
	repo       repository.MemberRepository
	cache      cache.MemberCache
	auditor    audit.Auditor
	metrics    Recorder
	validation models.ValidationOptions
	actorID    string
	storeName  string
}

// Option configures a MemberService
type Option func(*MemberService)

// WithCache enables read-through caching of single member lookups
func WithCache(c cache.MemberCache) Option {
	return func(s *MemberService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithAuditor sends mutation events to the audit service
func WithAuditor(a audit.Auditor) Option {
	return func(s *MemberService) {
		if a != nil {
			s.auditor = a
		}
	}
}

// WithMetrics records business events and storage latency
func WithMetrics(r Recorder) Option {
	return func(s *MemberService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithValidationOptions overrides the default (strict) validation rules
func WithValidationOptions(opts models.ValidationOptions) Option {
	return func(s *MemberService) { s.validation = opts }
}

// WithActorID sets the actor id written to audit events
func WithActorID(id string) Option {
	return func(s *MemberService) { s.actorID = id }
}

// WithStoreName labels storage metrics, typically with the database driver
func WithStoreName(name string) Option {
	return func(s *MemberService) { s.storeName = name }
}

// NewMemberService creates a new member service
func NewMemberService(repo repository.MemberRepository, opts ...Option) *MemberService {
	s := &MemberService{
		repo:       repo,
		cache:      cache.NoopCache{},
		auditor:    noopAuditor{},
		metrics:    noopRecorder{},
		validation: models.DefaultValidationOptions(),
		actorID:    "member-registry",
		storeName:  "database",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateMember validates and stores a new member
func (s *MemberService) CreateMember(ctx context.Context, req models.MemberRequest) (*models.MemberResponse, error) {
	const action = "member_create"

	valid, verr := models.ValidateMember(req, s.validation)
	if verr != nil {
		s.metrics.RecordBusinessEvent(action, outcomeInvalid)
		return nil, apierrors.ValidationError(MsgValidationFailed, verr.Fields)
	}

	var member *models.Member
	err := s.timed("create", func() (err error) {
		member, err = s.repo.Create(ctx, valid)
		return err
	})
	if err != nil {
		apiErr := s.classify(action, err)
		s.audit(ctx, audit.ActionCreate, audit.StatusFailure, 0, map[string]any{"reason": string(apiErr.Type)})
		return nil, apiErr
	}

	resp := member.ToResponse()
	s.metrics.RecordBusinessEvent(action, outcomeSuccess)
	s.audit(ctx, audit.ActionCreate, audit.StatusSuccess, member.ID, nil)
	slog.Info("Created member", "member_id", member.ID, "request_id", utils.RequestIDFromContext(ctx))
	return &resp, nil
}

// ListMembers returns the members matching filter; an empty result is not an error
func (s *MemberService) ListMembers(ctx context.Context, filter models.MemberFilter) ([]models.MemberResponse, error) {
	var members []models.Member
	err := s.timed("list", func() (err error) {
		members, err = s.repo.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, s.classify("member_list", err)
	}

	responses := make([]models.MemberResponse, 0, len(members))
	for i := range members {
		responses = append(responses, members[i].ToResponse())
	}
	return responses, nil
}

// GetMember returns a single member, served from cache when possible
func (s *MemberService) GetMember(ctx context.Context, id uint) (*models.MemberResponse, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}
	// taken before the read so a concurrent write discards this fill
	generation := s.cache.Generation(ctx, id)

	var member *models.Member
	err := s.timed("get", func() (err error) {
		member, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.classify("member_get", err)
	}

	resp := member.ToResponse()
	s.cache.Fill(ctx, resp, generation)
	return &resp, nil
}

// UpdateMember applies a partial update. Absent fields keep their stored
// values and the merged record is validated as a whole. The merge runs
// against the row locked by the update, so concurrent patches to different
// fields both survive. A missing id is reported before any validation error.
func (s *MemberService) UpdateMember(ctx context.Context, id uint, patch models.MemberPatch) (*models.MemberResponse, error) {
	const action = "member_update"

	var updated *models.Member
	err := s.timed("update", func() (err error) {
		updated, err = s.repo.Update(ctx, id, func(current *models.Member) (models.ValidMember, error) {
			valid, verr := models.ValidateMember(patch.MergeOnto(current), s.validation)
			if verr != nil {
				return models.ValidMember{}, verr
			}
			return valid, nil
		})
		return err
	})

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		s.metrics.RecordBusinessEvent(action, outcomeInvalid)
		return nil, apierrors.ValidationError(MsgValidationFailed, verr.Fields)
	}
	if err != nil {
		apiErr := s.classify(action, err)
		s.audit(ctx, audit.ActionUpdate, audit.StatusFailure, id, map[string]any{"reason": string(apiErr.Type)})
		return nil, apiErr
	}

	resp := updated.ToResponse()
	s.cache.Invalidate(ctx, id)
	s.metrics.RecordBusinessEvent(action, outcomeSuccess)
	s.audit(ctx, audit.ActionUpdate, audit.StatusSuccess, id, map[string]any{"fields": patchedFields(patch)})
	slog.Info("Updated member", "member_id", id, "request_id", utils.RequestIDFromContext(ctx))
	return &resp, nil
}

// DeleteMember hard-deletes a member
func (s *MemberService) DeleteMember(ctx context.Context, id uint) error {
	const action = "member_delete"

	err := s.timed("delete", func() error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		apiErr := s.classify(action, err)
		s.audit(ctx, audit.ActionDelete, audit.StatusFailure, id, map[string]any{"reason": string(apiErr.Type)})
		return apiErr
	}

	s.cache.Invalidate(ctx, id)
	s.metrics.RecordBusinessEvent(action, outcomeSuccess)
	s.audit(ctx, audit.ActionDelete, audit.StatusSuccess, id, nil)
	slog.Info("Deleted member", "member_id", id, "request_id", utils.RequestIDFromContext(ctx))
	return nil
}

// CountMembers returns the number of stored members
func (s *MemberService) CountMembers(ctx context.Context) (int64, error) {
	var count int64
	err := s.timed("count", func() (err error) {
		count, err = s.repo.Count(ctx)
		return err
	})
	if err != nil {
		return 0, apierrors.DatabaseError("count members", err)
	}
	return count, nil
}

// classify maps repository failures onto API errors. Unknown failures keep
// their cause for the response layer to log and surface as a generic
// internal error.
func (s *MemberService) classify(action string, err error) *apierrors.APIError {
	switch {
	case errors.Is(err, repository.ErrMemberNotFound):
		s.metrics.RecordBusinessEvent(action, outcomeNotFound)
		return apierrors.NotFoundError("Member")
	case errors.Is(err, repository.ErrDuplicatePhone):
		s.metrics.RecordBusinessEvent(action, outcomeDuplicate)
		return apierrors.ConflictError(MsgPhoneExists)
	default:
		s.metrics.RecordBusinessEvent(action, outcomeError)
		return apierrors.DatabaseError(actionOperation[action], err)
	}
}

var actionOperation = map[string]string{
	"member_create": "create member",
	"member_list":   "list members",
	"member_get":    "get member",
	"member_update": "update member",
	"member_delete": "delete member",
}

func (s *MemberService) timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	// not-found, duplicates and rejected patches are answers, not storage failures
	recorded := err
	var verr *models.ValidationError
	if errors.Is(err, repository.ErrMemberNotFound) || errors.Is(err, repository.ErrDuplicatePhone) || errors.As(err, &verr) {
		recorded = nil
	}
	s.metrics.RecordExternalCall(s.storeName, operation, time.Since(start), recorded)
	return err
}

func (s *MemberService) audit(ctx context.Context, action audit.Action, status audit.Status, id uint, metadata map[string]any) {
	if !s.auditor.IsEnabled() {
		return
	}
	ev := audit.NewMemberEvent(action, status, id)
	ev.ActorID = s.actorID
	ev.TraceID = utils.RequestIDFromContext(ctx)
	ev.Metadata = metadata
	s.auditor.Record(ctx, ev)
}

func patchedFields(p models.MemberPatch) []string {
	fields := make([]string, 0, 3)
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Club != nil {
		fields = append(fields, "club")
	}
	return fields
}
