package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/testem-api/internal/dto"
	"github.com/noah-isme/testem-api/internal/models"
	"github.com/noah-isme/testem-api/internal/observability"
	"github.com/noah-isme/testem-api/internal/pipeline"
	"github.com/noah-isme/testem-api/internal/repository"
	"github.com/noah-isme/testem-api/internal/reqctx"
	"github.com/noah-isme/testem-api/pkg/backboard"
)

// ErrMissingUser indicates the request carried no authenticated user.
var ErrMissingUser = errors.New("authenticated user required")

// AssistantProvisioner creates assistants on the AI service.
type AssistantProvisioner interface {
	CreateAssistant(ctx context.Context, in backboard.CreateAssistantRequest) (backboard.Assistant, error)
}

// AssistantService resolves the persistent assistant that owns a user's exam history.
type AssistantService interface {
	Ensure(ctx context.Context, userID string) (dto.AssistantResponse, error)
}

type assistantService struct {
	repo        repository.AssistantRepository
	provisioner AssistantProvisioner
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewAssistantService constructs an assistant service. cache may be nil.
func NewAssistantService(repo repository.AssistantRepository, provisioner AssistantProvisioner, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AssistantService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &assistantService{
		repo:        repo,
		provisioner: provisioner,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "assistant_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/testem-api/internal/service/assistant"),
	}
}

func assistantCacheKey(userID string) string {
	return "testem:assistant:" + userID
}

// Ensure returns the user's assistant, provisioning one on first use.
func (s *assistantService) Ensure(ctx context.Context, userID string) (dto.AssistantResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.AssistantResponse{}, ErrMissingUser
	}

	ctx, span := s.tracer.Start(ctx, "assistant.ensure", trace.WithAttributes(attribute.String("assistant.user_id", userID)))
	defer span.End()

	key := assistantCacheKey(userID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil && cached != "" {
			observability.AssistantLookups().WithLabelValues("cache_hit").Inc()
			span.SetAttributes(attribute.Bool("assistant.cache_hit", true))
			return dto.AssistantResponse{ID: cached}, nil
		} else if err != nil && err != redis.Nil {
			reqctx.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to read assistant cache")
		}
	}

	existing, err := s.repo.FindByUser(ctx, userID)
	switch {
	case err == nil:
		observability.AssistantLookups().WithLabelValues("stored").Inc()
		s.remember(ctx, key, existing.ID)
		return dto.AssistantResponse{ID: existing.ID}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return dto.AssistantResponse{}, fmt.Errorf("lookup assistant: %w", err)
	}

	created, err := s.provisioner.CreateAssistant(ctx, backboard.CreateAssistantRequest{
		Name:        pipeline.AssistantName,
		Description: pipeline.AssistantSystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provisioning failed")
		return dto.AssistantResponse{}, fmt.Errorf("provision assistant: %w", err)
	}

	record := models.Assistant{ID: created.ID, UserID: userID}
	if err := s.repo.Create(ctx, &record); err != nil {
		// A concurrent request may have provisioned first; prefer the stored row.
		if stored, findErr := s.repo.FindByUser(ctx, userID); findErr == nil {
			reqctx.Logger(ctx, s.logger).Warn().Str("orphan_assistant_id", created.ID).Msg("assistant already provisioned for user")
			s.remember(ctx, key, stored.ID)
			return dto.AssistantResponse{ID: stored.ID}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.AssistantResponse{}, fmt.Errorf("store assistant: %w", err)
	}

	observability.AssistantLookups().WithLabelValues("created").Inc()
	reqctx.Logger(ctx, s.logger).Info().Str("user_id", userID).Str("assistant_id", created.ID).Msg("assistant provisioned")
	s.remember(ctx, key, created.ID)
	span.SetStatus(codes.Ok, "provisioned")

	return dto.AssistantResponse{ID: created.ID, Created: true}, nil
}

func (s *assistantService) remember(ctx context.Context, key, assistantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, assistantID, s.cacheTTL).Err(); err != nil {
		reqctx.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to store assistant cache")
	}
}
