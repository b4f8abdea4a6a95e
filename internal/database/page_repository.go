package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// PageData carries the scalar page columns for an upsert.
type PageData struct {
	URL             string
	Path            string
	Title           *string
	ContentText     *string
	ContentHTML     *string
	MetaDescription *string
	H1              *string
	Language        *string
	StatusCode      *int
	ContentLength   *int64
	ContentType     *string
	Accessible      bool
}

// LinkData is one outgoing link of a crawled page.
type LinkData struct {
	TargetURL    string
	TargetDomain *string
	AnchorText   *string
	LinkType     string
	SourceOfLink string
	Position     int
}

// CrawlResult groups everything one crawl persists atomically: the domain,
// the page, its links and its headers. Readers never see a page without the
// links and headers of the same crawl.
type CrawlResult struct {
	Address     string
	Title       *string
	Description *string
	Page        PageData
	Links       []LinkData
	Headers     map[string]string
}

// PageRepository handles database operations for pages, links and headers.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// upsertPageQuery inserts or updates a page by url. Scalar columns are
// last-writer-wins; the crawl count strictly increments.
const upsertPageQuery = `
	INSERT INTO pages (domain_id, url, path, title, content_text, content_html,
		meta_description, h1, language, status_code, content_length, content_type,
		accessible, crawl_count, last_crawled)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, NOW())
	ON CONFLICT (url) DO UPDATE SET
		domain_id = EXCLUDED.domain_id,
		path = EXCLUDED.path,
		title = EXCLUDED.title,
		content_text = EXCLUDED.content_text,
		content_html = EXCLUDED.content_html,
		meta_description = EXCLUDED.meta_description,
		h1 = EXCLUDED.h1,
		language = EXCLUDED.language,
		status_code = EXCLUDED.status_code,
		content_length = EXCLUDED.content_length,
		content_type = EXCLUDED.content_type,
		accessible = EXCLUDED.accessible,
		crawl_count = pages.crawl_count + 1,
		last_crawled = NOW()
	RETURNING id
`

// Upsert inserts or updates a page by url and returns its id.
func (r *PageRepository) Upsert(ctx context.Context, domainID int64, page PageData) (int64, error) {
	var id int64
	if err := r.db.GetContext(ctx, &id, upsertPageQuery, pageArgs(domainID, page)...); err != nil {
		return 0, fmt.Errorf("failed to upsert page: %w", err)
	}
	return id, nil
}

func pageArgs(domainID int64, p PageData) []any {
	return []any{
		domainID, p.URL, p.Path, p.Title, p.ContentText, p.ContentHTML,
		p.MetaDescription, p.H1, p.Language, p.StatusCode, p.ContentLength,
		p.ContentType, p.Accessible,
	}
}

// SaveCrawl persists one crawl in a single transaction: domain upsert, page
// upsert, link insert, header insert. Returns the domain and page ids.
func (r *PageRepository) SaveCrawl(ctx context.Context, result CrawlResult) (domainID, pageID int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin crawl transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	dom, err := upsertDomainTx(ctx, tx, result.Address, result.Title, result.Description)
	if err != nil {
		return 0, 0, err
	}

	if getErr := tx.GetContext(ctx, &pageID, upsertPageQuery, pageArgs(dom.ID, result.Page)...); getErr != nil {
		return 0, 0, fmt.Errorf("failed to upsert page: %w", getErr)
	}

	if linkErr := insertLinksTx(ctx, tx, pageID, result.Links); linkErr != nil {
		return 0, 0, linkErr
	}

	if headerErr := insertHeadersTx(ctx, tx, pageID, result.Headers); headerErr != nil {
		return 0, 0, headerErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return 0, 0, fmt.Errorf("failed to commit crawl transaction: %w", commitErr)
	}

	return dom.ID, pageID, nil
}

// InsertLinks bulk-inserts the outgoing links of a page, idempotent by
// (page_id, position).
func (r *PageRepository) InsertLinks(ctx context.Context, pageID int64, links []LinkData) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin link transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if insertErr := insertLinksTx(ctx, tx, pageID, links); insertErr != nil {
		return insertErr
	}

	return tx.Commit()
}

// insertLinksTx writes links with a single multi-values insert.
func insertLinksTx(ctx context.Context, tx *sqlx.Tx, pageID int64, links []LinkData) error {
	if len(links) == 0 {
		return nil
	}

	const cols = 7
	placeholders := make([]string, 0, len(links))
	args := make([]any, 0, len(links)*cols)

	for i, link := range links {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, pageID, link.TargetURL, link.TargetDomain,
			link.AnchorText, link.LinkType, link.SourceOfLink, link.Position)
	}

	query := `
		INSERT INTO links (page_id, target_url, target_domain, anchor_text,
			link_type, source_of_link, position)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (page_id, position) DO UPDATE SET
			target_url = EXCLUDED.target_url,
			target_domain = EXCLUDED.target_domain,
			anchor_text = EXCLUDED.anchor_text,
			link_type = EXCLUDED.link_type,
			source_of_link = EXCLUDED.source_of_link
	`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert links: %w", err)
	}

	return nil
}

// InsertHeaders bulk-inserts the response headers of a page, idempotent by
// (page_id, name).
func (r *PageRepository) InsertHeaders(ctx context.Context, pageID int64, headers map[string]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin header transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if insertErr := insertHeadersTx(ctx, tx, pageID, headers); insertErr != nil {
		return insertErr
	}

	return tx.Commit()
}

// insertHeadersTx writes headers with a single multi-values insert. Header
// names are stored lowercased so searches are case-insensitive.
func insertHeadersTx(ctx context.Context, tx *sqlx.Tx, pageID int64, headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}

	const cols = 3
	placeholders := make([]string, 0, len(headers))
	args := make([]any, 0, len(headers)*cols)

	i := 0
	for name, value := range headers {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, pageID, strings.ToLower(name), value)
		i++
	}

	query := `
		INSERT INTO headers (page_id, name, value)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (page_id, name) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert headers: %w", err)
	}

	return nil
}

// PageStats contains aggregate page counters for the stats snapshot.
type PageStats struct {
	Total      int `db:"total"      json:"total"`
	Accessible int `db:"accessible" json:"accessible"`
}

// Stats returns aggregate page counters.
func (r *PageRepository) Stats(ctx context.Context) (*PageStats, error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE accessible) AS accessible
		FROM pages
	`

	var stats PageStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to query page stats: %w", err)
	}

	return &stats, nil
}

// ListByDomain returns pages of a domain ordered by last crawl, paginated.
func (r *PageRepository) ListByDomain(ctx context.Context, domainID int64, limit, offset int) ([]domain.Page, error) {
	query := `
		SELECT id, domain_id, url, path, title, content_text, content_html,
			meta_description, h1, language, status_code, content_length,
			content_type, accessible, crawl_count, last_crawled
		FROM pages
		WHERE domain_id = $1
		ORDER BY last_crawled DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`

	var pages []domain.Page
	if err := r.db.SelectContext(ctx, &pages, query, domainID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	return pages, nil
}
