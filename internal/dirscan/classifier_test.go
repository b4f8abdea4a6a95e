package dirscan

import (
	"strings"
	"testing"

	"github.com/jonesrussell/torcrawl/internal/domain"
)

var testDomain = strings.Repeat("a", 56) + ".onion"

func notFoundBaseline() Baseline {
	body := []byte("Not Found")
	return Baseline{StatusCode: 404, ContentLength: int64(len(body)), Body: body}
}

// A 200 whose body is byte-identical to the baseline is a soft-404 and never
// interesting, even for a sensitive path.
func TestClassify_Soft404Suppression(t *testing.T) {
	baseline := Baseline{StatusCode: 200, ContentLength: 9, Body: []byte("Not Found")}

	probe := Probe{
		Path:       "admin/",
		StatusCode: 200,
		Body:       []byte("Not Found"),
	}

	result := Classify(testDomain, probe, baseline)

	if result.IsInteresting {
		t.Error("soft-404 flagged as interesting")
	}
	if result.InterestReason == nil || *result.InterestReason != "soft-404" {
		t.Errorf("interest reason = %v, want soft-404", result.InterestReason)
	}
}

func TestClassify_EnvFileIsInteresting(t *testing.T) {
	body := []byte("APP_ENV=production\nDB_PASSWORD=hunter2\n")
	probe := Probe{
		Path:          ".env",
		StatusCode:    200,
		ContentLength: int64(len(body)),
		Body:          body,
	}

	result := Classify(testDomain, probe, notFoundBaseline())

	if !result.IsInteresting {
		t.Fatal(".env hit not flagged")
	}
	if result.Category == nil || *result.Category != domain.CategoryCredentialsFile {
		t.Errorf("category = %v, want credentials-file", result.Category)
	}
}

func TestClassify_GitHeadByBodyMarker(t *testing.T) {
	body := []byte("ref: refs/heads/main\n")
	probe := Probe{
		Path:          ".git/HEAD",
		StatusCode:    200,
		ContentLength: int64(len(body)),
		Body:          body,
	}

	result := Classify(testDomain, probe, notFoundBaseline())

	if !result.IsInteresting {
		t.Fatal(".git/HEAD hit not flagged")
	}
	if result.Category == nil || *result.Category != domain.CategorySourceControl {
		t.Errorf("category = %v, want source-control", result.Category)
	}
}

// Matching a category signature is not enough: the response must also
// diverge from the baseline.
func TestClassify_NoDivergenceNotInteresting(t *testing.T) {
	baseline := notFoundBaseline()

	probe := Probe{
		Path:          "admin/",
		StatusCode:    404,
		ContentLength: baseline.ContentLength,
		Body:          baseline.Body,
	}

	result := Classify(testDomain, probe, baseline)

	if result.IsInteresting {
		t.Error("baseline-identical response flagged as interesting")
	}
	if result.Category == nil {
		t.Error("category signature should still be recorded")
	}
}

func TestClassify_UncategorizedPathNotInteresting(t *testing.T) {
	probe := Probe{
		Path:          "blog/",
		StatusCode:    200,
		ContentLength: 5000,
		Body:          []byte("<html>a perfectly ordinary page</html>"),
	}

	result := Classify(testDomain, probe, notFoundBaseline())

	if result.IsInteresting {
		t.Error("uncategorized path flagged as interesting")
	}
}

func TestClassify_ContentLengthDivergence(t *testing.T) {
	if !lengthDiverges(200, 100) {
		t.Error("2x length not divergent")
	}
	if lengthDiverges(105, 100) {
		t.Error("5% delta wrongly divergent")
	}
	if !lengthDiverges(1, 0) {
		t.Error("zero baseline with content not divergent")
	}
	if lengthDiverges(0, 0) {
		t.Error("zero/zero wrongly divergent")
	}
}

func TestClassify_RecordsResponseFields(t *testing.T) {
	probe := Probe{
		Path:           "robots.txt",
		StatusCode:     200,
		ContentLength:  64,
		ContentType:    "text/plain",
		ResponseTimeMs: 420,
		ServerHeader:   "nginx",
		RedirectURL:    "",
		Body:           []byte("User-agent: *\nDisallow: /private/\n"),
	}

	result := Classify(testDomain, probe, notFoundBaseline())

	if result.Domain != testDomain || result.Path != "robots.txt" {
		t.Errorf("identity fields = %s %s", result.Domain, result.Path)
	}
	if result.ContentType == nil || *result.ContentType != "text/plain" {
		t.Errorf("content type = %v", result.ContentType)
	}
	if result.ServerHeader == nil || *result.ServerHeader != "nginx" {
		t.Errorf("server header = %v", result.ServerHeader)
	}
	if result.BodySnippet == nil || !strings.Contains(*result.BodySnippet, "Disallow") {
		t.Errorf("body snippet = %v", result.BodySnippet)
	}
	if result.Category == nil || *result.Category != domain.CategoryRobotsSitemap {
		t.Errorf("category = %v, want robots-sitemap", result.Category)
	}
}

func TestPathsForProfile(t *testing.T) {
	if got := len(PathsForProfile(domain.ProfileQuick)); got != 10 {
		t.Errorf("quick profile = %d paths, want 10", got)
	}
	if got := len(PathsForProfile(domain.ProfileStandard)); got != 25 {
		t.Errorf("standard profile = %d paths, want 25", got)
	}
	if len(PathsForProfile(domain.ProfileFull)) <= len(PathsForProfile(domain.ProfileStandard)) {
		t.Error("full profile not larger than standard")
	}
	if got := len(PathsForProfile("bogus")); got != 25 {
		t.Errorf("unknown profile = %d paths, want standard fallback", got)
	}
}
