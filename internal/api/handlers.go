package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/torcrawl/internal/database"
	"github.com/jonesrussell/torcrawl/internal/onion"
)

// Link pagination defaults for the domain detail page.
const (
	defaultLinkLimit = 25
	pageListLimit    = 50
)

// handleIndex renders the search interface, running the combined search when
// a query is present.
func (s *Server) handleIndex(c *gin.Context) {
	rawQuery := c.Query("q")

	params := ParseQuery(rawQuery)
	params.Limit = intQuery(c, "limit", 0)
	params.Offset = intQuery(c, "offset", 0)

	data := gin.H{
		"Query":      rawQuery,
		"Error":      c.Query("error"),
		"HasQuery":   rawQuery != "",
		"Results":    []database.SearchResult{},
		"TotalCount": 0,
		"Offset":     params.Offset,
	}

	if rawQuery != "" {
		results, total, err := s.deps.Search.Search(c.Request.Context(), params)
		if err != nil {
			s.log.Error("search failed", "query", rawQuery, "error", err.Error())
			data["Error"] = "search failed"
		} else {
			data["Results"] = results
			data["TotalCount"] = total
		}
	}

	c.HTML(http.StatusOK, "index.tmpl", data)
}

// handleSearchRedirect normalizes the query and redirects to the index.
func (s *Server) handleSearchRedirect(c *gin.Context) {
	params := ParseQuery(c.Query("q"))

	values := url.Values{}
	if q := FormatQuery(params); q != "" {
		values.Set("q", q)
	}
	if limit := intQuery(c, "limit", 0); limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if offset := intQuery(c, "offset", 0); offset > 0 {
		values.Set("offset", strconv.Itoa(offset))
	}

	target := "/"
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}

	c.Redirect(http.StatusFound, target)
}

// StatsSnapshot is the JSON statistics document.
type StatsSnapshot struct {
	Domains      *database.DomainStats   `json:"domains"`
	Pages        *database.PageStats     `json:"pages"`
	CrawlQueue   *database.QueueStats    `json:"crawl_queue"`
	ScanQueue    *database.QueueStats    `json:"scan_queue"`
	DirScanQueue *database.QueueStats    `json:"dir_scan_queue"`
	PortScans    *database.PortScanStats `json:"port_scans"`
	DirScans     *database.DirScanStats  `json:"dir_scans"`
}

// handleStats returns the aggregate statistics snapshot.
func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()
	var snapshot StatsSnapshot
	var err error

	if snapshot.Domains, err = s.deps.Domains.Stats(ctx); err == nil {
		if snapshot.Pages, err = s.deps.Pages.Stats(ctx); err == nil {
			if snapshot.CrawlQueue, err = s.deps.CrawlQueue.Stats(ctx); err == nil {
				if snapshot.ScanQueue, err = s.deps.ScanQueue.Stats(ctx); err == nil {
					if snapshot.DirScanQueue, err = s.deps.DirQueue.Stats(ctx); err == nil {
						if snapshot.PortScans, err = s.deps.PortScans.Stats(ctx); err == nil {
							snapshot.DirScans, err = s.deps.DirScans.Stats(ctx)
						}
					}
				}
			}
		}
	}

	if err != nil {
		s.log.Error("stats snapshot failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect statistics"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// handleDomain renders the domain detail page with its pages, open ports,
// flagged paths and paginated link edges.
func (s *Server) handleDomain(c *gin.Context) {
	addr := strings.ToLower(strings.TrimSpace(c.Param("addr")))

	if !strings.HasSuffix(addr, ".onion") || !onion.ValidAddress(addr) {
		redirectWithError(c, "invalid onion address")
		return
	}

	ctx := c.Request.Context()

	dom, err := s.deps.Domains.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, database.ErrDomainNotFound) {
			redirectWithError(c, "domain not found")
			return
		}
		s.log.Error("domain lookup failed", "address", addr, "error", err.Error())
		redirectWithError(c, "domain lookup failed")
		return
	}

	linkLimit := intQuery(c, "links_limit", defaultLinkLimit)
	outOffset := intQuery(c, "out_offset", 0)
	inOffset := intQuery(c, "in_offset", 0)

	pages, err := s.deps.Pages.ListByDomain(ctx, dom.ID, pageListLimit, 0)
	if err != nil {
		s.log.Error("page listing failed", "address", addr, "error", err.Error())
	}

	openPorts, err := s.deps.PortScans.OpenPortsByDomain(ctx, addr)
	if err != nil {
		s.log.Error("open port listing failed", "address", addr, "error", err.Error())
	}

	findings, err := s.deps.DirScans.InterestingByDomain(ctx, addr)
	if err != nil {
		s.log.Error("dir scan listing failed", "address", addr, "error", err.Error())
	}

	outgoing, outTotal, err := s.deps.Search.OutgoingLinks(ctx, addr, linkLimit, outOffset)
	if err != nil {
		s.log.Error("outgoing link listing failed", "address", addr, "error", err.Error())
	}

	incoming, inTotal, err := s.deps.Search.IncomingLinks(ctx, addr, linkLimit, inOffset)
	if err != nil {
		s.log.Error("incoming link listing failed", "address", addr, "error", err.Error())
	}

	c.HTML(http.StatusOK, "domain.tmpl", gin.H{
		"Domain":        dom,
		"Pages":         pages,
		"OpenPorts":     openPorts,
		"Findings":      findings,
		"Outgoing":      outgoing,
		"OutgoingTotal": outTotal,
		"OutOffset":     outOffset,
		"Incoming":      incoming,
		"IncomingTotal": inTotal,
		"InOffset":      inOffset,
		"LinkLimit":     linkLimit,
	})
}

// redirectWithError sends the browser back to the index with an error banner.
func redirectWithError(c *gin.Context, msg string) {
	c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(msg))
}

// intQuery reads a non-negative integer query parameter.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
