package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/torcrawl/internal/database"
)

func newPageRepo(t *testing.T) (*database.PageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewPageRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func strPtr(s string) *string { return &s }

// SaveCrawl must persist the domain, page, links and headers in one
// transaction so readers never see a page without its edges.
func TestPageRepository_SaveCrawl_SingleTransaction(t *testing.T) {
	repo, mock, cleanup := newPageRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO domains").
		WillReturnRows(sqlmock.NewRows([]string{"id", "address", "crawl_count"}).
			AddRow(7, "aaa.onion", 1))
	mock.ExpectQuery("INSERT INTO pages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("INSERT INTO links").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO headers").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result := database.CrawlResult{
		Address: "aaa.onion",
		Title:   strPtr("Example"),
		Page: database.PageData{
			URL:        "http://aaa.onion/",
			Path:       "/",
			Title:      strPtr("Example"),
			Accessible: true,
		},
		Links: []database.LinkData{
			{TargetURL: "http://bbb.onion/", LinkType: "onion-external", SourceOfLink: "element", Position: 0},
		},
		Headers: map[string]string{"Server": "nginx"},
	}

	domainID, pageID, err := repo.SaveCrawl(context.Background(), result)
	if err != nil {
		t.Fatalf("SaveCrawl() error = %v", err)
	}
	if domainID != 7 {
		t.Errorf("domain id = %d, want 7", domainID)
	}
	if pageID != 42 {
		t.Errorf("page id = %d, want 42", pageID)
	}

	expectationsMet(t, mock)
}

// A failed link insert rolls back the whole crawl; no partial commit.
func TestPageRepository_SaveCrawl_RollbackOnLinkFailure(t *testing.T) {
	repo, mock, cleanup := newPageRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO domains").
		WillReturnRows(sqlmock.NewRows([]string{"id", "address", "crawl_count"}).
			AddRow(7, "aaa.onion", 1))
	mock.ExpectQuery("INSERT INTO pages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("INSERT INTO links").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	result := database.CrawlResult{
		Address: "aaa.onion",
		Page:    database.PageData{URL: "http://aaa.onion/", Path: "/"},
		Links: []database.LinkData{
			{TargetURL: "http://bbb.onion/", LinkType: "onion-external", SourceOfLink: "element", Position: 0},
		},
	}

	if _, _, err := repo.SaveCrawl(context.Background(), result); err == nil {
		t.Fatal("SaveCrawl() expected error")
	}

	expectationsMet(t, mock)
}
