package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Velubby/etl-weather/internal/funfact"
	"github.com/Velubby/etl-weather/internal/geo"
	"github.com/Velubby/etl-weather/internal/pipeline"
	"github.com/Velubby/etl-weather/internal/transform"
)

func testServer(t *testing.T, geoURL string) (*Server, string) {
	t.Helper()
	base := t.TempDir()
	processed := filepath.Join(base, "processed")
	if err := os.MkdirAll(processed, 0o755); err != nil {
		t.Fatal(err)
	}

	gc := geo.New(&http.Client{Timeout: time.Second})
	if geoURL != "" {
		gc = gc.WithBaseURL(geoURL)
	}

	s := &Server{
		Pipeline: &pipeline.Pipeline{
			Engine: &transform.Engine{RawDir: filepath.Join(base, "raw"), ProcessedDir: processed},
			Days:   7,
		},
		Geo:      gc,
		FunFacts: funfact.NewService(time.Minute, funfact.Strategy{Name: "fallback", Generator: funfact.LocalGenerator{}}),
		Days:     7,
	}
	return s, processed
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t, "")
	app := NewApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	s, _ := testServer(t, "")
	app := NewApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSearchReturnsCandidates(t *testing.T) {
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"name":"Jakarta","country":"Indonesia","latitude":-6.2,"longitude":106.8,"timezone":"Asia/Jakarta"}]}`)
	}))
	defer geoSrv.Close()

	s, _ := testServer(t, geoSrv.URL)
	app := NewApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/search?q=Jakarta", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Query   string          `json:"query"`
		Count   int             `json:"count"`
		Results []geo.Candidate `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || len(body.Results) != 1 {
		t.Fatalf("expected one candidate, got count=%d results=%d", body.Count, len(body.Results))
	}
	if body.Results[0].Name != "Jakarta" {
		t.Fatalf("unexpected candidate: %+v", body.Results[0])
	}
}

func TestDailyRequiresCity(t *testing.T) {
	s, _ := testServer(t, "")
	app := NewApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/data/daily", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestDailyMissingDataWithoutRefreshIs404(t *testing.T) {
	s, _ := testServer(t, "")
	app := NewApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/data/daily?city=Atlantis", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestDailyServesExistingTable(t *testing.T) {
	s, processed := testServer(t, "")
	app := NewApp(s)

	temp := 31.0
	rows := []transform.DailyRecord{{Date: "2026-08-01", TempMax: &temp, TotalRain: 1.5, PM25Category: "Good"}}
	if err := transform.WriteDailyCSV(filepath.Join(processed, "jakarta_daily.csv"), rows); err != nil {
		t.Fatal(err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/data/daily?city=Jakarta", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		City  string                  `json:"city"`
		Count int                     `json:"count"`
		Data  []transform.DailyRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || len(body.Data) != 1 || body.Data[0].Date != "2026-08-01" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

// TestCompareValidation verifies that the comparison endpoint enforces at
// least two cities and the 1-16 range for the `days` query parameter.
func TestCompareValidation(t *testing.T) {
	s, _ := testServer(t, "")
	app := NewApp(s)

	cases := []string{
		"/compare",
		"/compare?cities=Jakarta",
		"/compare?cities=Jakarta,Bandung&days=0",
		"/compare?cities=Jakarta,Bandung&days=17",
	}
	for _, target := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", target, err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestFunFact(t *testing.T) {
	s, _ := testServer(t, "")
	app := NewApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/city/funfact/Bandung", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		City    string `json:"city"`
		FunFact string `json:"fun_fact"`
		Source  string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.City != "Bandung" || body.FunFact == "" || body.Source != "fallback" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}
