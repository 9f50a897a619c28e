package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// upsertQuery merges a new record into an existing row matched by
// (source, paper_id). Empty incoming strings never clobber stored values, and
// the citation count only grows.
const upsertQuery = `
	INSERT INTO papers (
		id, source, paper_id, title, abstract, authors, doi,
		published_date, pdf_url, url, categories, keywords, refs,
		citations, extra, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
	)
	ON CONFLICT (source, paper_id) DO UPDATE SET
		title = COALESCE(NULLIF(EXCLUDED.title, ''), papers.title),
		abstract = COALESCE(NULLIF(EXCLUDED.abstract, ''), papers.abstract),
		authors = EXCLUDED.authors,
		doi = COALESCE(NULLIF(EXCLUDED.doi, ''), papers.doi),
		published_date = COALESCE(EXCLUDED.published_date, papers.published_date),
		pdf_url = COALESCE(NULLIF(EXCLUDED.pdf_url, ''), papers.pdf_url),
		url = COALESCE(NULLIF(EXCLUDED.url, ''), papers.url),
		categories = EXCLUDED.categories,
		keywords = EXCLUDED.keywords,
		refs = EXCLUDED.refs,
		citations = GREATEST(EXCLUDED.citations, papers.citations),
		extra = COALESCE(EXCLUDED.extra, papers.extra),
		updated_at = NOW()`

const selectColumns = `
	source, paper_id, title, abstract, authors, doi,
	published_date, pdf_url, url, categories, keywords, refs,
	citations, extra`

// Upsert inserts a paper or updates an existing one matched by (source, paper_id).
func (r *PgPaperRepository) Upsert(ctx context.Context, paper *domain.Paper) error {
	if err := validatePaperKey(paper); err != nil {
		return err
	}

	args, err := upsertArgs(paper, time.Now().UTC())
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, upsertQuery, args...); err != nil {
		return fmt.Errorf("failed to upsert paper: %w", err)
	}
	return nil
}

// BulkUpsert upserts multiple papers in a single batched roundtrip.
// Uses pgx.Batch to send all upserts in one network roundtrip instead of
// issuing a query per paper.
func (r *PgPaperRepository) BulkUpsert(ctx context.Context, papers []*domain.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	for i, paper := range papers {
		if err := validatePaperKey(paper); err != nil {
			return fmt.Errorf("paper at index %d: %w", i, err)
		}
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, paper := range papers {
		args, err := upsertArgs(paper, now)
		if err != nil {
			return err
		}
		batch.Queue(upsertQuery, args...)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range papers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert paper at index %d: %w", i, err)
		}
	}
	return nil
}

// Get retrieves a stored paper by its source and source-native ID.
func (r *PgPaperRepository) Get(ctx context.Context, source domain.SourceType, paperID string) (*domain.Paper, error) {
	if paperID == "" {
		return nil, domain.NewValidationError("paper_id", "paper ID is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM papers
		WHERE source = $1 AND paper_id = $2`, selectColumns)

	row := r.db.QueryRow(ctx, query, source, paperID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", fmt.Sprintf("%s:%s", source, paperID))
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	return paper, nil
}

// GetByDOI retrieves a stored paper by DOI.
func (r *PgPaperRepository) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	if doi == "" {
		return nil, domain.NewValidationError("doi", "DOI is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM papers
		WHERE doi = $1
		ORDER BY updated_at DESC
		LIMIT 1`, selectColumns)

	row := r.db.QueryRow(ctx, query, doi)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", doi)
		}
		return nil, fmt.Errorf("failed to get paper by DOI: %w", err)
	}

	return paper, nil
}

// List retrieves stored papers matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Source != nil {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIndex))
		args = append(args, *filter.Source)
		argIndex++
	}

	if filter.TitleQuery != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE '%%' || $%d || '%%'", argIndex))
		args = append(args, filter.TitleQuery)
		argIndex++
	}

	if filter.HasDOI != nil {
		if *filter.HasDOI {
			conditions = append(conditions, "doi IS NOT NULL AND doi != ''")
		} else {
			conditions = append(conditions, "(doi IS NULL OR doi = '')")
		}
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM papers %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM papers
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		selectColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, filter.Limit)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// validatePaperKey checks that a record carries the (source, paper_id) key.
func validatePaperKey(paper *domain.Paper) error {
	if paper == nil {
		return domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.ID == "" {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}
	if paper.Source == "" {
		return domain.NewValidationError("source", "source is required")
	}
	return nil
}

// upsertArgs builds the positional arguments for upsertQuery.
func upsertArgs(paper *domain.Paper, now time.Time) ([]interface{}, error) {
	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}
	categoriesJSON, err := json.Marshal(paper.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categories: %w", err)
	}
	keywordsJSON, err := json.Marshal(paper.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}
	refsJSON, err := json.Marshal(paper.References)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal references: %w", err)
	}

	var extraJSON []byte
	if paper.Extra != nil {
		extraJSON, err = json.Marshal(paper.Extra)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extra: %w", err)
		}
	}

	// The unknown-date sentinel is stored as NULL.
	var published *time.Time
	if !paper.PublishedDate.IsZero() {
		published = &paper.PublishedDate
	}

	return []interface{}{
		uuid.New(),
		paper.Source,
		paper.ID,
		paper.Title,
		paper.Abstract,
		authorsJSON,
		paper.DOI,
		published,
		paper.PDFURL,
		paper.URL,
		categoriesJSON,
		keywordsJSON,
		refsJSON,
		paper.Citations,
		extraJSON,
		now,
		now,
	}, nil
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper          domain.Paper
	publishedDate  *time.Time
	authorsJSON    []byte
	categoriesJSON []byte
	keywordsJSON   []byte
	refsJSON       []byte
	extraJSON      []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.Source, &d.paper.ID, &d.paper.Title, &d.paper.Abstract, &d.authorsJSON, &d.paper.DOI,
		&d.publishedDate, &d.paper.PDFURL, &d.paper.URL, &d.categoriesJSON, &d.keywordsJSON, &d.refsJSON,
		&d.paper.Citations, &d.extraJSON,
	}
}

// finalize performs post-scan processing: restores the date sentinel and
// unmarshals JSON fields.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if d.publishedDate != nil {
		d.paper.PublishedDate = *d.publishedDate
	}

	for _, field := range []struct {
		name string
		raw  []byte
		dst  *[]string
	}{
		{"authors", d.authorsJSON, &d.paper.Authors},
		{"categories", d.categoriesJSON, &d.paper.Categories},
		{"keywords", d.keywordsJSON, &d.paper.Keywords},
		{"references", d.refsJSON, &d.paper.References},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field.name, err)
		}
	}

	if len(d.extraJSON) > 0 {
		if err := json.Unmarshal(d.extraJSON, &d.paper.Extra); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra: %w", err)
		}
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
