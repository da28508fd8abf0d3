package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DukeRupert/chartwise/internal/ai"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/metrics"
	"github.com/DukeRupert/chartwise/internal/repository"
	"github.com/DukeRupert/chartwise/internal/storage"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const (
	// ChartURLExpiry is how long presigned chart URLs stay valid.
	ChartURLExpiry = 15 * time.Minute

	// DefaultAnalysisPageSize is used when List is called without a limit.
	DefaultAnalysisPageSize = 20

	// MaxAnalysisPageSize caps List.
	MaxAnalysisPageSize = 100

	maxSymbolLength    = 20
	maxTimeframeLength = 10
	maxNotesLength     = 1000

	cleanupTimeout = 10 * time.Second
)

// =============================================================================
// Interface Definition
// =============================================================================

// AnalysisService runs and retrieves chart analyses.
type AnalysisService interface {
	// Analyze is the metered action. It checks the caller's entitlement,
	// stores the chart, calls the AI provider, saves the result and only
	// then records one unit of usage.
	// Returns domain.EQUOTA when the daily allowance is used up.
	Analyze(ctx context.Context, params domain.AnalyzeChartParams) (*domain.AnalysisOutcome, error)

	// Get returns one of the user's analyses with presigned image URLs.
	Get(ctx context.Context, userID, analysisID uuid.UUID) (*domain.ChartAnalysis, error)

	// List returns the user's analyses, newest first, and the total count.
	List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]domain.ChartAnalysis, int64, error)
}

// AnalysisRepository is the subset of repository.Queries the analysis service needs.
type AnalysisRepository interface {
	CreateChartAnalysis(ctx context.Context, arg repository.CreateChartAnalysisParams) (repository.ChartAnalysis, error)
	GetChartAnalysisByIDAndUserID(ctx context.Context, arg repository.GetChartAnalysisByIDAndUserIDParams) (repository.ChartAnalysis, error)
	ListChartAnalysesByUserID(ctx context.Context, arg repository.ListChartAnalysesByUserIDParams) ([]repository.ChartAnalysis, error)
	CountChartAnalysesByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

var _ AnalysisRepository = (*repository.Queries)(nil)

// =============================================================================
// Implementation
// =============================================================================

type analysisService struct {
	repo       AnalysisRepository
	usage      UsageService
	provider   ai.AIProvider
	storage    storage.Storage
	thumbnails ThumbnailProcessor
	logger     *slog.Logger
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(
	repo AnalysisRepository,
	usage UsageService,
	provider ai.AIProvider,
	store storage.Storage,
	thumbnails ThumbnailProcessor,
	logger *slog.Logger,
) AnalysisService {
	return &analysisService{
		repo:       repo,
		usage:      usage,
		provider:   provider,
		storage:    store,
		thumbnails: thumbnails,
		logger:     logger,
	}
}

func (s *analysisService) Analyze(ctx context.Context, params domain.AnalyzeChartParams) (*domain.AnalysisOutcome, error) {
	const op = "AnalysisService.Analyze"

	contentType, err := validateChartUpload(op, &params)
	if err != nil {
		metrics.ChartAnalyzed("invalid")
		return nil, err
	}

	// Gate before doing any billable work.
	ent, err := s.usage.Entitle(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if !ent.Allowed {
		metrics.ChartAnalyzed("denied")
		s.logger.Info("analysis denied by daily quota",
			"user_id", params.UserID,
			"used", ent.EffectiveUsed,
			"limit", ent.Limit,
		)
		return nil, domain.QuotaExceeded(op, ent.EffectiveUsed, ent.Limit)
	}

	thumb, width, height, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(params.Data), ThumbnailMaxWidth, ThumbnailMaxHeight)
	if err != nil {
		metrics.ChartAnalyzed("invalid")
		return nil, domain.Wrap(err, domain.EINVALID, op, "The chart image could not be read")
	}

	analysisID := uuid.New()
	imageKey := storage.ChartKey(params.UserID, analysisID, contentType)
	thumbKey := storage.ChartThumbnailKey(params.UserID, analysisID)

	if err := s.storage.Put(ctx, imageKey, bytes.NewReader(params.Data), storage.PutOptions{
		ContentType: contentType,
		Size:        int64(len(params.Data)),
		MaxSize:     domain.MaxChartSize,
	}); err != nil {
		metrics.ChartAnalyzed("error")
		return nil, domain.Internal(err, op, "Failed to store chart")
	}

	if err := s.storage.Put(ctx, thumbKey, bytes.NewReader(thumb), storage.PutOptions{
		ContentType: "image/jpeg",
		Size:        int64(len(thumb)),
	}); err != nil {
		s.logger.Warn("failed to store chart thumbnail", "analysis_id", analysisID, "error", err)
		thumbKey = ""
	}

	result, err := s.provider.AnalyzeChart(ctx, ai.AnalyzeChartParams{
		ImageData:   params.Data,
		ContentType: contentType,
		Symbol:      params.Symbol,
		Timeframe:   params.Timeframe,
		Notes:       params.Notes,
		AnalysisID:  analysisID,
		UserID:      params.UserID,
	})
	if err != nil {
		metrics.AICallFailed()
		metrics.ChartAnalyzed("error")
		s.cleanup(ctx, imageKey, thumbKey)
		return nil, mapProviderError(op, err)
	}

	metrics.AICallCompleted(result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CostCents, result.Usage.Duration)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		s.cleanup(ctx, imageKey, thumbKey)
		return nil, domain.Internal(err, op, "Failed to encode analysis")
	}

	row, err := s.repo.CreateChartAnalysis(ctx, repository.CreateChartAnalysisParams{
		ID:           analysisID,
		UserID:       params.UserID,
		ImageKey:     imageKey,
		ThumbnailKey: domain.ToNullString(thumbKey),
		Symbol:       domain.ToNullString(params.Symbol),
		Timeframe:    domain.ToNullString(params.Timeframe),
		Notes:        domain.ToNullString(params.Notes),
		Result:       pqtype.NullRawMessage{RawMessage: resultJSON, Valid: true},
		Model:        result.Usage.Model,
		InputTokens:  int32(result.Usage.InputTokens),
		OutputTokens: int32(result.Usage.OutputTokens),
	})
	if err != nil {
		metrics.ChartAnalyzed("error")
		s.cleanup(ctx, imageKey, thumbKey)
		return nil, domain.Internal(err, op, "Failed to save analysis")
	}

	// A failed increment still returns the analysis.
	var usage domain.Entitlement
	acct, err := s.usage.RecordUsage(ctx, params.UserID)
	if err != nil {
		s.logger.Error("failed to record usage after analysis",
			"user_id", params.UserID,
			"analysis_id", analysisID,
			"error", err,
		)
		usage = projectUsage(ent)
	} else {
		usage = acct.Evaluate(acct.LastResetDay)
	}

	analysis := repoAnalysisToDomain(row)
	s.attachURLs(ctx, analysis)

	metrics.ChartAnalyzed("success")
	s.logger.Info("chart analyzed",
		"user_id", params.UserID,
		"analysis_id", analysisID,
		"width", width,
		"height", height,
		"model", analysis.Model,
		"remaining", usage.Remaining,
	)

	return &domain.AnalysisOutcome{
		Analysis: analysis,
		Usage:    usage,
	}, nil
}

func (s *analysisService) Get(ctx context.Context, userID, analysisID uuid.UUID) (*domain.ChartAnalysis, error) {
	const op = "AnalysisService.Get"

	row, err := s.repo.GetChartAnalysisByIDAndUserID(ctx, repository.GetChartAnalysisByIDAndUserIDParams{
		ID:     analysisID,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "analysis", analysisID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve analysis")
	}

	analysis := repoAnalysisToDomain(row)
	s.attachURLs(ctx, analysis)
	return analysis, nil
}

func (s *analysisService) List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]domain.ChartAnalysis, int64, error) {
	const op = "AnalysisService.List"

	if limit <= 0 {
		limit = DefaultAnalysisPageSize
	}
	limit = min(limit, MaxAnalysisPageSize)

	rows, err := s.repo.ListChartAnalysesByUserID(ctx, repository.ListChartAnalysesByUserIDParams{
		UserID: userID,
		Limit:  limit,
		Offset: max(offset, 0),
	})
	if err != nil {
		return nil, 0, domain.Internal(err, op, "Failed to list analyses")
	}

	total, err := s.repo.CountChartAnalysesByUserID(ctx, userID)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "Failed to count analyses")
	}

	out := make([]domain.ChartAnalysis, 0, len(rows))
	for _, r := range rows {
		a := repoAnalysisToDomain(r)
		// Lists only need previews.
		if a.ThumbnailKey != "" {
			if url, err := s.storage.URL(ctx, a.ThumbnailKey, ChartURLExpiry); err == nil {
				a.ThumbnailURL = url
			}
		}
		out = append(out, *a)
	}

	return out, total, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// validateChartUpload trims the optional fields and checks the upload. The
// content type is sniffed from the bytes; the client's claim is ignored.
func validateChartUpload(op string, params *domain.AnalyzeChartParams) (string, error) {
	params.Symbol = strings.ToUpper(strings.TrimSpace(params.Symbol))
	params.Timeframe = strings.TrimSpace(params.Timeframe)
	params.Notes = strings.TrimSpace(params.Notes)

	if len(params.Data) == 0 {
		return "", domain.NewValidationError(op, "chart", "A chart image is required")
	}
	if len(params.Data) > domain.MaxChartSize {
		return "", domain.Errorf(domain.ETOOLARGE, op, "Chart images must be %d MB or smaller", domain.MaxChartSize>>20)
	}

	contentType := storage.SniffContentType(params.Data)
	if !domain.IsAllowedChartType(contentType) {
		return "", domain.NewValidationError(op, "chart", "Charts must be JPEG, PNG or WebP images")
	}

	var ve *domain.ValidationError
	check := func(field, value string, limit int, msg string) {
		if utf8.RuneCountInString(value) <= limit {
			return
		}
		if ve == nil {
			ve = domain.NewValidationError(op, field, msg)
			return
		}
		ve = domain.AddFieldError(ve, field, msg)
	}
	check("symbol", params.Symbol, maxSymbolLength, "Symbol must be 20 characters or less")
	check("timeframe", params.Timeframe, maxTimeframeLength, "Timeframe must be 10 characters or less")
	check("notes", params.Notes, maxNotesLength, "Notes must be 1000 characters or less")
	if ve != nil {
		return "", ve
	}

	return contentType, nil
}

// mapProviderError converts AI provider failures to domain errors. No usage
// is recorded for any of them.
func mapProviderError(op string, err error) error {
	switch {
	case errors.Is(err, ai.EAIInvalidImage):
		return domain.Wrap(err, domain.EINVALID, op, "The chart image could not be analyzed. Try a clearer screenshot.")
	case errors.Is(err, ai.EAIRateLimit):
		return domain.Wrap(err, domain.ERATELIMIT, op, "The analysis service is busy. Please try again shortly.")
	case ai.IsRetryable(err):
		return domain.Unavailable(err, op, "The analysis service is temporarily unavailable")
	default:
		return domain.Internal(err, op, "Chart analysis failed")
	}
}

// projectUsage is the entitlement the user would see had the increment
// succeeded on the day the gate was evaluated.
func projectUsage(before domain.Entitlement) domain.Entitlement {
	if before.Unlimited {
		return before
	}
	return domain.Evaluate(false, before.EffectiveUsed+1, before.Day, before.Day, before.Limit)
}

// cleanup removes stored objects for an analysis that did not complete. It
// runs even if the request context is already canceled.
func (s *analysisService) cleanup(ctx context.Context, keys ...string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to clean up chart object", "key", key, "error", err)
		}
	}
}

func (s *analysisService) attachURLs(ctx context.Context, a *domain.ChartAnalysis) {
	if url, err := s.storage.URL(ctx, a.ImageKey, ChartURLExpiry); err == nil {
		a.ImageURL = url
	} else {
		s.logger.Warn("failed to sign chart URL", "analysis_id", a.ID, "error", err)
	}
	if a.ThumbnailKey != "" {
		if url, err := s.storage.URL(ctx, a.ThumbnailKey, ChartURLExpiry); err == nil {
			a.ThumbnailURL = url
		}
	}
}

func repoAnalysisToDomain(r repository.ChartAnalysis) *domain.ChartAnalysis {
	var result json.RawMessage
	if r.Result.Valid {
		result = r.Result.RawMessage
	}

	return &domain.ChartAnalysis{
		ID:           r.ID,
		UserID:       r.UserID,
		ImageKey:     r.ImageKey,
		ThumbnailKey: domain.NullStringValue(r.ThumbnailKey),
		Symbol:       domain.NullStringValue(r.Symbol),
		Timeframe:    domain.NullStringValue(r.Timeframe),
		Notes:        domain.NullStringValue(r.Notes),
		Result:       result,
		Model:        r.Model,
		InputTokens:  int(r.InputTokens),
		OutputTokens: int(r.OutputTokens),
		CreatedAt:    r.CreatedAt,
	}
}

var _ AnalysisService = (*analysisService)(nil)
