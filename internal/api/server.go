// Package api implements the read-only HTTP surface: combined search over
// crawled pages, the statistics snapshot and per-domain detail pages.
package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/torcrawl/internal/config"
	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/domain"
	"github.com/jonesrussell/torcrawl/internal/logger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Searcher runs the combined search and link listings.
type Searcher interface {
	Search(ctx context.Context, params database.SearchParams) ([]database.SearchResult, int, error)
	OutgoingLinks(ctx context.Context, addr string, limit, offset int) ([]database.DomainLink, int, error)
	IncomingLinks(ctx context.Context, addr string, limit, offset int) ([]database.DomainLink, int, error)
}

// DomainReader reads domain rows and counters.
type DomainReader interface {
	GetByAddress(ctx context.Context, addr string) (*domain.Domain, error)
	Stats(ctx context.Context) (*database.DomainStats, error)
}

// PageReader reads page rows and counters.
type PageReader interface {
	ListByDomain(ctx context.Context, domainID int64, limit, offset int) ([]domain.Page, error)
	Stats(ctx context.Context) (*database.PageStats, error)
}

// PortScanReader reads port scan results and counters.
type PortScanReader interface {
	OpenPortsByDomain(ctx context.Context, dom string) ([]domain.PortScan, error)
	Stats(ctx context.Context) (*database.PortScanStats, error)
}

// DirScanReader reads directory scan findings and counters.
type DirScanReader interface {
	InterestingByDomain(ctx context.Context, dom string) ([]domain.DirScanResult, error)
	Stats(ctx context.Context) (*database.DirScanStats, error)
}

// QueueStatsReader reads queue status counters.
type QueueStatsReader interface {
	Stats(ctx context.Context) (*database.QueueStats, error)
}

// Deps bundles the repositories the server reads from.
type Deps struct {
	Search     Searcher
	Domains    DomainReader
	Pages      PageReader
	PortScans  PortScanReader
	DirScans   DirScanReader
	CrawlQueue QueueStatsReader
	ScanQueue  QueueStatsReader
	DirQueue   QueueStatsReader
}

// Server is the read API server.
type Server struct {
	cfg  config.ServerConfig
	deps Deps
	log  logger.Interface
	http *http.Server
}

// NewServer creates the read API server with its routes registered.
func NewServer(cfg config.ServerConfig, deps Deps, log logger.Interface) *Server {
	s := &Server{cfg: cfg, deps: deps, log: log}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	funcs := template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}
	tmpl := template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl"))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.handleIndex)
	router.GET("/search", s.handleSearchRedirect)
	router.GET("/stats", s.handleStats)
	router.GET("/domain/:addr", s.handleDomain)

	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("read api listening", "address", s.cfg.Address)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ReadTimeout)
	defer cancel()

	s.log.Info("shutting down read api")
	return s.http.Shutdown(shutdownCtx)
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status())
	}
}
