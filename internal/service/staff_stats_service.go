package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/observability"
	"github.com/noah-isme/campusfix-api/internal/repository"
)

const staffStatsCacheKey = "stats:staff"

// StaffStatsService aggregates per-staff workload for assignment decisions.
type StaffStatsService interface {
	StaffStats(ctx context.Context, caller models.User) ([]dto.StaffStat, error)
	Invalidate(ctx context.Context)
}

type staffStatsService struct {
	reports repository.ReportRepository
	users   repository.UserRepository
	cache   *redis.Client
	ttl     time.Duration
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewStaffStatsService constructs the aggregation service. cache may be nil.
func NewStaffStatsService(reports repository.ReportRepository, users repository.UserRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StaffStatsService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &staffStatsService{
		reports: reports,
		users:   users,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With().Str("component", "staff_stats_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/campusfix-api/internal/service/staff_stats"),
	}
}

func (s *staffStatsService) StaffStats(ctx context.Context, caller models.User) ([]dto.StaffStat, error) {
	if caller.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	ctx, span := s.tracer.Start(ctx, "stats.staff")
	defer span.End()

	if cached, ok := s.readCache(ctx); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	stats, err := s.compute(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.writeCache(ctx, stats)
	return stats, nil
}

func (s *staffStatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, staffStatsCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate staff stats cache")
	}
}

// compute joins every staff account with the assignee buckets. Idle staff get zero rows,
// assignees without an account keep the name stored on their reports. Ties in total keep
// staff id order.
func (s *staffStatsService) compute(ctx context.Context) ([]dto.StaffStat, error) {
	staff, err := s.users.List(ctx, repository.UserFilter{Role: models.RoleStaff})
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	buckets, err := s.reports.CountByAssigneeAndStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate reports: %w", err)
	}

	sort.SliceStable(staff, func(i, j int) bool { return staffIDLess(staff[i].StaffID, staff[j].StaffID) })

	stats := make([]dto.StaffStat, 0, len(staff))
	index := make(map[string]int, len(staff))
	for _, member := range staff {
		index[member.StaffID] = len(stats)
		stats = append(stats, dto.StaffStat{StaffID: member.StaffID, Name: member.Name})
	}

	for _, bucket := range buckets {
		position, ok := index[bucket.AssignedTo]
		if !ok {
			position = len(stats)
			index[bucket.AssignedTo] = position
			stats = append(stats, dto.StaffStat{StaffID: bucket.AssignedTo, Name: bucket.AssignedToName})
		}

		stat := &stats[position]
		stat.Total += bucket.Count
		switch bucket.Status {
		case models.StatusPending:
			stat.Pending += bucket.Count
		case models.StatusInProgress:
			stat.InProgress += bucket.Count
		case models.StatusResolved:
			stat.Completed += bucket.Count
		case models.StatusRejected:
		}
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Total > stats[j].Total })
	return stats, nil
}

// staffIDLess orders numeric staff ids by value so 10000 follows 5551. Non-numeric ids
// sort after numeric ones.
func staffIDLess(a, b string) bool {
	left, leftErr := strconv.ParseInt(a, 10, 64)
	right, rightErr := strconv.ParseInt(b, 10, 64)
	switch {
	case leftErr == nil && rightErr == nil:
		return left < right
	case leftErr == nil:
		return true
	case rightErr == nil:
		return false
	default:
		return a < b
	}
}

func (s *staffStatsService) readCache(ctx context.Context) ([]dto.StaffStat, bool) {
	if s.cache == nil {
		return nil, false
	}

	payload, err := s.cache.Get(ctx, staffStatsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("staff stats cache read failed")
		}
		observability.StaffStatsCache().WithLabelValues("miss").Inc()
		return nil, false
	}

	var stats []dto.StaffStat
	if err := json.Unmarshal(payload, &stats); err != nil {
		s.logger.Warn().Err(err).Msg("discarding corrupt staff stats cache entry")
		observability.StaffStatsCache().WithLabelValues("miss").Inc()
		return nil, false
	}

	observability.StaffStatsCache().WithLabelValues("hit").Inc()
	return stats, true
}

func (s *staffStatsService) writeCache(ctx context.Context, stats []dto.StaffStat) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, staffStatsCacheKey, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("staff stats cache write failed")
	}
}
