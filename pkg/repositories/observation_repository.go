package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daramad/daramad-engine/pkg/database"
	"github.com/daramad/daramad-engine/pkg/models"
)

// GroupIncome holds the usable income values of one job group.
type GroupIncome struct {
	GroupKey string
	Values   []float64
}

// ObservationRepository provides data access for user-submitted job observations.
type ObservationRepository interface {
	Create(ctx context.Context, obs *models.Observation) error
	ListByJobTitleIDs(ctx context.Context, ids []int64, limit, offset int) ([]*models.Observation, int, error)
	UsableValues(ctx context.Context, ids []int64) (income, investment []float64, err error)
	CityCounts(ctx context.Context, ids []int64) ([]models.CityCount, error)
	IncomeByGroup(ctx context.Context, minCount int) ([]GroupIncome, error)
}

type observationRepository struct{}

// NewObservationRepository creates a new ObservationRepository.
func NewObservationRepository() ObservationRepository {
	return &observationRepository{}
}

var _ ObservationRepository = (*observationRepository)(nil)

func (r *observationRepository) Create(ctx context.Context, obs *models.Observation) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO job_observations (
			id, job_title_id, city,
			income_raw, income_status, income_value, income_min, income_max, income_is_range, income_note,
			investment_raw, investment_status, investment_value, investment_min, investment_max, investment_is_range, investment_note,
			description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	incValue, incMin, incMax := moneyColumns(obs.Income)
	invValue, invMin, invMax := moneyColumns(obs.Investment)

	_, err := scope.Conn.Exec(ctx, query,
		obs.ID, obs.JobTitleID, obs.City,
		obs.IncomeRaw, string(obs.Income.Status), incValue, incMin, incMax, obs.Income.IsRange, obs.Income.Note,
		obs.InvestmentRaw, string(obs.Investment.Status), invValue, invMin, invMax, obs.Investment.IsRange, obs.Investment.Note,
		obs.Description, obs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}

	return nil
}

// ListByJobTitleIDs returns one page of observations, newest first, and the
// total number of observations for the ids.
func (r *observationRepository) ListByJobTitleIDs(ctx context.Context, ids []int64, limit, offset int) ([]*models.Observation, int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no database scope in context")
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}

	var total int
	err := scope.Conn.QueryRow(ctx,
		`SELECT count(*) FROM job_observations WHERE job_title_id = ANY($1)`, ids,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	query := `
		SELECT id, job_title_id, city,
		       income_raw, income_status, income_value, income_min, income_max, income_is_range, income_note,
		       investment_raw, investment_status, investment_value, investment_min, investment_max, investment_is_range, investment_note,
		       description, created_at
		FROM job_observations
		WHERE job_title_id = ANY($1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := scope.Conn.Query(ctx, query, ids, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var result []*models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan observation: %w", err)
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating observations: %w", err)
	}

	return result, total, nil
}

// UsableValues returns the parsed values with status ok for both money fields.
func (r *observationRepository) UsableValues(ctx context.Context, ids []int64) ([]float64, []float64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, nil, fmt.Errorf("no database scope in context")
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	query := `
		SELECT
			COALESCE(array_agg(income_value::float8) FILTER (WHERE income_status = 'ok'), '{}'),
			COALESCE(array_agg(investment_value::float8) FILTER (WHERE investment_status = 'ok'), '{}')
		FROM job_observations
		WHERE job_title_id = ANY($1)`

	var income, investment []float64
	if err := scope.Conn.QueryRow(ctx, query, ids).Scan(&income, &investment); err != nil {
		return nil, nil, fmt.Errorf("failed to query usable values: %w", err)
	}
	return income, investment, nil
}

// CityCounts returns observation counts per non-empty city, most frequent first.
func (r *observationRepository) CityCounts(ctx context.Context, ids []int64) ([]models.CityCount, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT city, count(*)
		FROM job_observations
		WHERE job_title_id = ANY($1) AND city <> ''
		GROUP BY city
		ORDER BY count(*) DESC, city`

	rows, err := scope.Conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query city counts: %w", err)
	}

	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CityCount, error) {
		var c models.CityCount
		err := row.Scan(&c.City, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect city counts: %w", err)
	}
	return counts, nil
}

// IncomeByGroup returns the usable income values of every group with at
// least minCount of them.
func (r *observationRepository) IncomeByGroup(ctx context.Context, minCount int) ([]GroupIncome, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT jt.group_key, array_agg(o.income_value::float8 ORDER BY o.income_value)
		FROM job_observations o
		JOIN job_titles jt ON jt.id = o.job_title_id
		WHERE o.income_status = 'ok' AND jt.group_key IS NOT NULL
		GROUP BY jt.group_key
		HAVING count(*) >= $1
		ORDER BY jt.group_key`

	rows, err := scope.Conn.Query(ctx, query, minCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query income by group: %w", err)
	}

	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GroupIncome, error) {
		var g GroupIncome
		err := row.Scan(&g.GroupKey, &g.Values)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect income by group: %w", err)
	}
	return groups, nil
}

// moneyColumns maps a parsed value to its nullable columns. Only ok and zero
// values carry numbers.
func moneyColumns(v models.MonetaryValue) (value, lo, hi *int64) {
	if v.Status != models.MoneyOK && v.Status != models.MoneyZero {
		return nil, nil, nil
	}
	value, lo, hi = &v.Value, &v.Min, &v.Max
	return value, lo, hi
}

func scanObservation(row pgx.Row) (*models.Observation, error) {
	var obs models.Observation
	var incStatus, invStatus string
	var incValue, incMin, incMax, invValue, invMin, invMax *int64

	if err := row.Scan(
		&obs.ID, &obs.JobTitleID, &obs.City,
		&obs.IncomeRaw, &incStatus, &incValue, &incMin, &incMax, &obs.Income.IsRange, &obs.Income.Note,
		&obs.InvestmentRaw, &invStatus, &invValue, &invMin, &invMax, &obs.Investment.IsRange, &obs.Investment.Note,
		&obs.Description, &obs.CreatedAt,
	); err != nil {
		return nil, err
	}

	obs.Income.Status = models.MoneyStatus(incStatus)
	fillMoney(&obs.Income, incValue, incMin, incMax)
	obs.Investment.Status = models.MoneyStatus(invStatus)
	fillMoney(&obs.Investment, invValue, invMin, invMax)
	return &obs, nil
}

func fillMoney(v *models.MonetaryValue, value, lo, hi *int64) {
	if value == nil {
		return
	}
	v.Value = *value
	if lo != nil {
		v.Min = *lo
	}
	if hi != nil {
		v.Max = *hi
	}
	v.Unit = models.CanonicalMoneyUnit
}
