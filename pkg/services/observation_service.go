package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/apperrors"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/money"
	"github.com/daramad/daramad-engine/pkg/repositories"
	"github.com/daramad/daramad-engine/pkg/stats"
)

const (
	defaultObservationLimit = 20
	maxObservationLimit     = 100

	// topIncomeMinCount is the fewest usable incomes a group needs to be ranked.
	topIncomeMinCount = 3
)

// MoneyParser parses monetary text.
type MoneyParser interface {
	Parse(raw string, opts money.Options) models.MonetaryValue
}

// ObservationService records and aggregates user-submitted job observations.
type ObservationService interface {
	Ingest(ctx context.Context, input models.ObservationInput) (*models.Observation, error)
	Summary(ctx context.Context, jobTitleID int64) (*models.JobSummary, error)
	List(ctx context.Context, jobTitleID int64, limit, offset int) (*models.ObservationPage, error)
	TopByIncome(ctx context.Context, limit int) ([]models.IncomeRanking, error)
}

type observationService struct {
	jobTitles    repositories.JobTitleRepository
	observations repositories.ObservationRepository
	parser       MoneyParser
	incomeOpts   money.Options
	investOpts   money.Options
	logger       *zap.Logger
}

// NewObservationService creates an ObservationService. The money options
// carry the configured thresholds; their profiles are overridden per field.
func NewObservationService(
	jobTitles repositories.JobTitleRepository,
	observations repositories.ObservationRepository,
	parser MoneyParser,
	moneyOpts money.Options,
	logger *zap.Logger,
) ObservationService {
	incomeOpts, investOpts := moneyOpts, moneyOpts
	incomeOpts.Profile = money.ProfileIncome
	investOpts.Profile = money.ProfileInvestment
	return &observationService{
		jobTitles:    jobTitles,
		observations: observations,
		parser:       parser,
		incomeOpts:   incomeOpts,
		investOpts:   investOpts,
		logger:       logger.Named("observation-service"),
	}
}

var _ ObservationService = (*observationService)(nil)

func (s *observationService) Ingest(ctx context.Context, input models.ObservationInput) (*models.Observation, error) {
	if input.JobTitleID <= 0 {
		return nil, fmt.Errorf("%w: job_title_id is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(input.Income) == "" && strings.TrimSpace(input.Investment) == "" {
		return nil, fmt.Errorf("%w: income or investment is required", apperrors.ErrInvalidInput)
	}

	jt, err := s.jobTitles.GetByID(ctx, input.JobTitleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job title: %w", err)
	}
	if jt == nil {
		return nil, apperrors.ErrNotFound
	}

	obs := &models.Observation{
		JobTitleID:    input.JobTitleID,
		City:          strings.TrimSpace(input.City),
		IncomeRaw:     input.Income,
		Income:        s.parser.Parse(input.Income, s.incomeOpts),
		InvestmentRaw: input.Investment,
		Investment:    s.parser.Parse(input.Investment, s.investOpts),
		Description:   strings.TrimSpace(input.Description),
	}
	recordMoneyParse(string(money.ProfileIncome), obs.Income.Status)
	recordMoneyParse(string(money.ProfileInvestment), obs.Investment.Status)

	if err := s.observations.Create(ctx, obs); err != nil {
		s.logger.Error("Failed to store observation",
			zap.Int64("job_title_id", input.JobTitleID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Observation recorded",
		zap.String("observation_id", obs.ID.String()),
		zap.Int64("job_title_id", obs.JobTitleID),
		zap.String("income_status", string(obs.Income.Status)),
		zap.String("investment_status", string(obs.Investment.Status)))
	return obs, nil
}

// groupOf returns the job title and the ids of every row in its group.
func (s *observationService) groupOf(ctx context.Context, jobTitleID int64) (*models.JobTitle, []int64, error) {
	jt, err := s.jobTitles.GetByID(ctx, jobTitleID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get job title: %w", err)
	}
	if jt == nil || !jt.IsVisible {
		return nil, nil, apperrors.ErrNotFound
	}

	ids := []int64{jt.ID}
	if key := jt.Group(); key != "" {
		groupIDs, err := s.jobTitles.GroupIDs(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load group ids: %w", err)
		}
		if len(groupIDs) > 0 {
			ids = groupIDs
		}
	}
	return jt, ids, nil
}

func (s *observationService) Summary(ctx context.Context, jobTitleID int64) (*models.JobSummary, error) {
	jt, ids, err := s.groupOf(ctx, jobTitleID)
	if err != nil {
		return nil, err
	}

	income, investment, err := s.observations.UsableValues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load observation values: %w", err)
	}
	cities, err := s.observations.CityCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load city counts: %w", err)
	}
	_, total, err := s.observations.ListByJobTitleIDs(ctx, ids, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to count observations: %w", err)
	}

	return &models.JobSummary{
		JobTitleID:   jt.ID,
		Label:        jt.DisplayLabel(),
		GroupKey:     jt.Group(),
		Observations: total,
		Income:       summarizeField(income),
		Investment:   summarizeField(investment),
		Cities:       cities,
	}, nil
}

func summarizeField(values []float64) models.FieldSummary {
	sum := stats.Summarize(values)
	recordOutlierDetection(string(sum.Result.Method), sum.Result.HasOutliers)
	return models.FieldSummary{
		Count:    sum.Count,
		Excluded: sum.Excluded,
		Central:  sum.RoundedCentral(),
		Min:      int64(sum.Min),
		Max:      int64(sum.Max),
		Method:   string(sum.Result.Method),
		Outliers: sum.Result.Outliers,
	}
}

func (s *observationService) List(ctx context.Context, jobTitleID int64, limit, offset int) (*models.ObservationPage, error) {
	if limit <= 0 {
		limit = defaultObservationLimit
	}
	limit = min(limit, maxObservationLimit)
	offset = max(offset, 0)

	_, ids, err := s.groupOf(ctx, jobTitleID)
	if err != nil {
		return nil, err
	}

	items, total, err := s.observations.ListByJobTitleIDs(ctx, ids, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	if items == nil {
		items = []*models.Observation{}
	}

	return &models.ObservationPage{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}, nil
}

// TopByIncome ranks job groups by their central income, highest first.
func (s *observationService) TopByIncome(ctx context.Context, limit int) ([]models.IncomeRanking, error) {
	if limit <= 0 {
		limit = 5
	}

	groups, err := s.observations.IncomeByGroup(ctx, topIncomeMinCount)
	if err != nil {
		return nil, fmt.Errorf("failed to load income by group: %w", err)
	}

	type ranked struct {
		groupKey string
		central  int64
		count    int
	}
	rankings := make([]ranked, 0, len(groups))
	for _, g := range groups {
		sum := stats.Summarize(g.Values)
		if sum.Count == 0 {
			continue
		}
		rankings = append(rankings, ranked{groupKey: g.GroupKey, central: sum.RoundedCentral(), count: sum.Count})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].central != rankings[j].central {
			return rankings[i].central > rankings[j].central
		}
		return rankings[i].groupKey < rankings[j].groupKey
	})

	var out []models.IncomeRanking
	for _, r := range rankings {
		if len(out) >= limit {
			break
		}
		rows, err := s.jobTitles.FindByGroupKey(ctx, r.groupKey)
		if err != nil {
			return nil, fmt.Errorf("failed to find job group: %w", err)
		}
		rep := groupRepresentative(rows)
		if rep == nil {
			continue
		}
		out = append(out, models.IncomeRanking{
			JobTitleID:   rep.ID,
			Label:        rep.DisplayLabel(),
			GroupKey:     r.groupKey,
			MedianIncome: r.central,
			Count:        r.count,
		})
	}
	return out, nil
}
