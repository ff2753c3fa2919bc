package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/daramad/daramad-engine/pkg/database"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// JobTitleRepository provides read access to the job-title catalog.
// Catalog maintenance happens elsewhere; Create exists for seeding.
type JobTitleRepository interface {
	Create(ctx context.Context, jobTitle *models.JobTitle) error
	GetByID(ctx context.Context, id int64) (*models.JobTitle, error)
	FindByGroupKey(ctx context.Context, groupKey string) ([]*models.JobTitle, error)
	GroupIDs(ctx context.Context, groupKey string) ([]int64, error)
	FindByPhrases(ctx context.Context, stage models.MatchStage, phrases []string) ([]models.JobTitleMatch, error)
}

type jobTitleRepository struct{}

// NewJobTitleRepository creates a new JobTitleRepository.
func NewJobTitleRepository() JobTitleRepository {
	return &jobTitleRepository{}
}

var _ JobTitleRepository = (*jobTitleRepository)(nil)

const jobTitleColumns = `jt.id, jt.group_key, jt.label, jt.base_label, jt.slug,
	jt.is_primary, jt.is_visible, jt.category_id, jt.created_at`

// stageConditions holds the join predicate between job_titles (jt) and the
// phrase list (p) for each search stage. Phrases arrive query-normalized.
var stageConditions = map[models.MatchStage]string{
	models.StageExact: `(jt.normalized_label = p.phrase
		OR jt.normalized_base_label = p.phrase
		OR lower(jt.slug) = p.phrase
		OR lower(jt.label) = p.phrase)`,
	models.StagePrefix: `(starts_with(jt.normalized_label, p.phrase)
		OR starts_with(jt.normalized_base_label, p.phrase))`,
	models.StageContains: `(strpos(jt.normalized_label, p.phrase) > 0
		OR strpos(jt.normalized_base_label, p.phrase) > 0)`,
}

func (r *jobTitleRepository) Create(ctx context.Context, jt *models.JobTitle) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO job_titles (
			group_key, label, base_label, slug, normalized_label,
			normalized_base_label, is_primary, is_visible, category_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		jt.GroupKey,
		jt.Label,
		jt.BaseLabel,
		jt.Slug,
		textnorm.NormalizeQuery(jt.Label),
		textnorm.NormalizeQuery(jt.BaseLabel),
		jt.IsPrimary,
		jt.IsVisible,
		jt.CategoryID,
	).Scan(&jt.ID, &jt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job title: %w", err)
	}

	return nil
}

// GetByID returns the row regardless of visibility, or nil if it does not exist.
func (r *jobTitleRepository) GetByID(ctx context.Context, id int64) (*models.JobTitle, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + jobTitleColumns + ` FROM job_titles jt WHERE jt.id = $1`

	jt, err := scanJobTitle(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job title: %w", err)
	}

	return jt, nil
}

// FindByGroupKey returns the visible rows of a group, primary rows first.
func (r *jobTitleRepository) FindByGroupKey(ctx context.Context, groupKey string) ([]*models.JobTitle, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + jobTitleColumns + `
		FROM job_titles jt
		WHERE jt.group_key = $1 AND jt.is_visible
		ORDER BY jt.is_primary DESC, jt.id`

	rows, err := scope.Conn.Query(ctx, query, groupKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query job titles by group: %w", err)
	}
	defer rows.Close()

	var result []*models.JobTitle
	for rows.Next() {
		jt, err := scanJobTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job title: %w", err)
		}
		result = append(result, jt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job titles: %w", err)
	}

	return result, nil
}

// GroupIDs returns the ids of every row sharing the group key, hidden rows
// included, so observations filed under a hidden variant still count.
func (r *jobTitleRepository) GroupIDs(ctx context.Context, groupKey string) ([]int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `SELECT id FROM job_titles WHERE group_key = $1 ORDER BY id`, groupKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query group ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect group ids: %w", err)
	}
	return ids, nil
}

// FindByPhrases runs one search stage for all phrases at once. Only visible
// rows with a group are returned. A row matched by several phrases is
// reported once, with its longest matching phrase.
func (r *jobTitleRepository) FindByPhrases(ctx context.Context, stage models.MatchStage, phrases []string) ([]models.JobTitleMatch, error) {
	cond, ok := stageConditions[stage]
	if !ok {
		return nil, fmt.Errorf("unknown match stage %q", stage)
	}
	if len(phrases) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		WITH p AS (
			SELECT DISTINCT phrase FROM unnest($1::text[]) AS phrase WHERE phrase <> ''
		),
		matched AS (
			SELECT DISTINCT ON (jt.id) ` + jobTitleColumns + `, p.phrase
			FROM job_titles jt
			JOIN p ON ` + cond + `
			WHERE jt.is_visible AND jt.group_key IS NOT NULL
			ORDER BY jt.id, char_length(p.phrase) DESC, p.phrase
		),
		row_jobs AS (
			SELECT o.job_title_id, count(*) AS jobs
			FROM job_observations o
			WHERE o.job_title_id IN (SELECT id FROM matched)
			GROUP BY o.job_title_id
		),
		group_jobs AS (
			SELECT g.group_key, count(o.id) AS jobs
			FROM job_titles g
			JOIN job_observations o ON o.job_title_id = g.id
			WHERE g.group_key IN (SELECT group_key FROM matched)
			GROUP BY g.group_key
		)
		SELECT m.id, m.group_key, m.label, m.base_label, m.slug,
		       m.is_primary, m.is_visible, m.category_id, m.created_at,
		       m.phrase, COALESCE(rj.jobs, 0), COALESCE(gj.jobs, 0)
		FROM matched m
		LEFT JOIN row_jobs rj ON rj.job_title_id = m.id
		LEFT JOIN group_jobs gj ON gj.group_key = m.group_key
		ORDER BY m.id`

	rows, err := scope.Conn.Query(ctx, query, phrases)
	if err != nil {
		return nil, fmt.Errorf("failed to query job titles (%s): %w", stage, err)
	}
	defer rows.Close()

	var matches []models.JobTitleMatch
	for rows.Next() {
		var m models.JobTitleMatch
		jt := &m.JobTitle
		if err := rows.Scan(
			&jt.ID, &jt.GroupKey, &jt.Label, &jt.BaseLabel, &jt.Slug,
			&jt.IsPrimary, &jt.IsVisible, &jt.CategoryID, &jt.CreatedAt,
			&m.MatchedPhrase, &m.JobsCount, &m.GroupTotalJobs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job title match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job title matches: %w", err)
	}

	return matches, nil
}

func scanJobTitle(row pgx.Row) (*models.JobTitle, error) {
	var jt models.JobTitle
	if err := row.Scan(
		&jt.ID, &jt.GroupKey, &jt.Label, &jt.BaseLabel, &jt.Slug,
		&jt.IsPrimary, &jt.IsVisible, &jt.CategoryID, &jt.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &jt, nil
}
