package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Search pagination defaults.
const (
	defaultSearchLimit = 25
	maxSearchLimit     = 100
)

// SearchParams is a parsed search expression. Empty fields do not constrain;
// non-empty fields must all match (AND).
type SearchParams struct {
	Text        string
	Title       string
	Header      string
	HeaderValue string
	Port        int
	Limit       int
	Offset      int
}

// SearchResult is one combined search hit.
type SearchResult struct {
	Address         string     `db:"address"          json:"address"`
	URL             string     `db:"url"              json:"url"`
	Title           *string    `db:"title"            json:"title,omitempty"`
	MetaDescription *string    `db:"meta_description" json:"meta_description,omitempty"`
	StatusCode      *int       `db:"status_code"      json:"status_code,omitempty"`
	LastCrawled     *time.Time `db:"last_crawled"     json:"last_crawled,omitempty"`
}

// SearchRepository composes the combined search over pages, headers and
// port scans for the read API.
type SearchRepository struct {
	db *sqlx.DB
}

// NewSearchRepository creates a new search repository.
func NewSearchRepository(db *sqlx.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Search runs the combined search. Free text matches page title, content
// text and meta description; title matches the page title alone; a header
// tag matches stored headers; a port tag keeps only domains with a matching
// open port.
func (r *SearchRepository) Search(ctx context.Context, params SearchParams) ([]SearchResult, int, error) {
	whereClause, args := buildSearchWhere(params)

	count, countErr := r.countSearch(ctx, whereClause, args)
	if countErr != nil {
		return nil, 0, countErr
	}

	results, selectErr := r.selectSearch(ctx, params, whereClause, args)
	if selectErr != nil {
		return nil, 0, selectErr
	}

	return results, count, nil
}

// buildSearchWhere builds the WHERE clause and args for search queries.
func buildSearchWhere(params SearchParams) (whereClause string, args []any) {
	var conditions []string
	args = []any{}
	argIndex := 1

	if params.Text != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(p.title ILIKE $%d OR p.content_text ILIKE $%d OR p.meta_description ILIKE $%d)",
			argIndex, argIndex, argIndex))
		args = append(args, "%"+params.Text+"%")
		argIndex++
	}

	if params.Title != "" {
		conditions = append(conditions, fmt.Sprintf("p.title ILIKE $%d", argIndex))
		args = append(args, "%"+params.Title+"%")
		argIndex++
	}

	if params.Header != "" {
		if params.HeaderValue != "" {
			conditions = append(conditions, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM headers h WHERE h.page_id = p.id AND h.name = $%d AND h.value ILIKE $%d)",
				argIndex, argIndex+1))
			args = append(args, strings.ToLower(params.Header), "%"+params.HeaderValue+"%")
			argIndex += 2
		} else {
			conditions = append(conditions, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM headers h WHERE h.page_id = p.id AND h.name = $%d)",
				argIndex))
			args = append(args, strings.ToLower(params.Header))
			argIndex++
		}
	}

	if params.Port > 0 {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM port_scans ps WHERE ps.domain = d.address AND ps.port = $%d AND ps.state = 'open')",
			argIndex))
		args = append(args, params.Port)
	}

	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	return whereClause, args
}

// countSearch returns the total hit count for the WHERE clause.
func (r *SearchRepository) countSearch(ctx context.Context, whereClause string, args []any) (int, error) {
	var count int
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM pages p JOIN domains d ON d.id = p.domain_id %s", whereClause)

	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count search results: %w", err)
	}

	return count, nil
}

// selectSearch returns search hits with pagination.
func (r *SearchRepository) selectSearch(
	ctx context.Context,
	params SearchParams,
	whereClause string,
	args []any,
) ([]SearchResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	argIndex := len(args) + 1
	query := fmt.Sprintf(`
		SELECT d.address, p.url, p.title, p.meta_description, p.status_code, p.last_crawled
		FROM pages p
		JOIN domains d ON d.id = p.domain_id
		%s
		ORDER BY p.last_crawled DESC NULLS LAST
		LIMIT $%d OFFSET $%d
	`, whereClause, argIndex, argIndex+1)

	args = append(args, limit, offset)

	var results []SearchResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select search results: %w", err)
	}

	if results == nil {
		results = []SearchResult{}
	}

	return results, nil
}

// DomainLink is one edge shown on the domain detail page.
type DomainLink struct {
	SourceURL  string  `db:"source_url"  json:"source_url"`
	TargetURL  string  `db:"target_url"  json:"target_url"`
	AnchorText *string `db:"anchor_text" json:"anchor_text,omitempty"`
	LinkType   string  `db:"link_type"   json:"link_type"`
}

// OutgoingLinks returns links from pages of the given domain, paginated.
func (r *SearchRepository) OutgoingLinks(ctx context.Context, addr string, limit, offset int) ([]DomainLink, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM links l
		JOIN pages p ON p.id = l.page_id
		JOIN domains d ON d.id = p.domain_id
		WHERE d.address = $1
	`

	var count int
	if err := r.db.GetContext(ctx, &count, countQuery, addr); err != nil {
		return nil, 0, fmt.Errorf("failed to count outgoing links: %w", err)
	}

	query := `
		SELECT p.url AS source_url, l.target_url, l.anchor_text, l.link_type
		FROM links l
		JOIN pages p ON p.id = l.page_id
		JOIN domains d ON d.id = p.domain_id
		WHERE d.address = $1
		ORDER BY l.id DESC
		LIMIT $2 OFFSET $3
	`

	var links []DomainLink
	if err := r.db.SelectContext(ctx, &links, query, addr, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list outgoing links: %w", err)
	}

	return links, count, nil
}

// IncomingLinks returns links from other domains targeting the given domain,
// paginated.
func (r *SearchRepository) IncomingLinks(ctx context.Context, addr string, limit, offset int) ([]DomainLink, int, error) {
	countQuery := `SELECT COUNT(*) FROM links WHERE target_domain = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, countQuery, addr); err != nil {
		return nil, 0, fmt.Errorf("failed to count incoming links: %w", err)
	}

	query := `
		SELECT p.url AS source_url, l.target_url, l.anchor_text, l.link_type
		FROM links l
		JOIN pages p ON p.id = l.page_id
		WHERE l.target_domain = $1
		ORDER BY l.id DESC
		LIMIT $2 OFFSET $3
	`

	var links []DomainLink
	if err := r.db.SelectContext(ctx, &links, query, addr, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list incoming links: %w", err)
	}

	return links, count, nil
}
