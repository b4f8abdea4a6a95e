package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

// PortScanRepository handles database operations for port scan results.
type PortScanRepository struct {
	db *sqlx.DB
}

// NewPortScanRepository creates a new port scan repository.
func NewPortScanRepository(db *sqlx.DB) *PortScanRepository {
	return &PortScanRepository{db: db}
}

// InsertResults writes a batch of port probe results with a single
// multi-values insert.
func (r *PortScanRepository) InsertResults(ctx context.Context, results []domain.PortScan) error {
	if len(results) == 0 {
		return nil
	}

	const cols = 7
	placeholders := make([]string, 0, len(results))
	args := make([]any, 0, len(results)*cols)

	for i, res := range results {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, res.Domain, res.Port, res.State, res.Banner,
			res.Service, res.Version, res.Confidence)
	}

	query := `
		INSERT INTO port_scans (domain, port, state, banner, service, version, confidence)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert port scan results: %w", err)
	}

	return nil
}

// UpsertDetectedService records a confident signature match for a
// (domain, port), keeping only the latest detection.
func (r *PortScanRepository) UpsertDetectedService(ctx context.Context, svc domain.DetectedService) error {
	query := `
		INSERT INTO detected_services (domain, port, service, version, confidence, detected_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (domain, port) DO UPDATE SET
			service = EXCLUDED.service,
			version = EXCLUDED.version,
			confidence = EXCLUDED.confidence,
			detected_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query,
		svc.Domain, svc.Port, svc.Service, svc.Version, svc.Confidence); err != nil {
		return fmt.Errorf("failed to upsert detected service: %w", err)
	}

	return nil
}

// OpenPortsByDomain returns the most recent open-port rows for a domain.
func (r *PortScanRepository) OpenPortsByDomain(ctx context.Context, dom string) ([]domain.PortScan, error) {
	query := `
		SELECT DISTINCT ON (port) id, domain, port, state, banner, service,
			version, confidence, scanned_at
		FROM port_scans
		WHERE domain = $1 AND state = 'open'
		ORDER BY port, scanned_at DESC
	`

	var scans []domain.PortScan
	if err := r.db.SelectContext(ctx, &scans, query, dom); err != nil {
		return nil, fmt.Errorf("failed to list open ports: %w", err)
	}

	return scans, nil
}

// PortScanStats contains aggregate port scan counters for the stats snapshot.
type PortScanStats struct {
	TotalScans int `db:"total_scans" json:"total_scans"`
	OpenPorts  int `db:"open_ports"  json:"open_ports"`
	Services   int `db:"services"    json:"services"`
}

// Stats returns aggregate port scan counters.
func (r *PortScanRepository) Stats(ctx context.Context) (*PortScanStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM port_scans) AS total_scans,
			(SELECT COUNT(*) FROM port_scans WHERE state = 'open') AS open_ports,
			(SELECT COUNT(*) FROM detected_services) AS services
	`

	var stats PortScanStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to query port scan stats: %w", err)
	}

	return &stats, nil
}
