package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/pkg/mockzoominfo"
	"github.com/shpitdev/company-enricher/pkg/zoominfo"
)

func newMock(t *testing.T, srv *mockzoominfo.Server) *zoominfo.Client {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	c, err := zoominfo.NewClient(zoominfo.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestEnvCredentials(t *testing.T) {
	env := func(m map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}

	creds, err := enrich.EnvCredentials{Lookup: env(map[string]string{
		enrich.EnvClientID:   " id ",
		enrich.EnvPrivateKey: "key",
	})}.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.ClientID != "id" || creds.PrivateKey != "key" {
		t.Fatalf("unexpected credentials %#v", creds)
	}

	for name, m := range map[string]map[string]string{
		"both missing": {},
		"blank key":    {enrich.EnvClientID: "id", enrich.EnvPrivateKey: "   "},
		"missing id":   {enrich.EnvPrivateKey: "key"},
		"empty both":   {enrich.EnvClientID: "", enrich.EnvPrivateKey: ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := enrich.EnvCredentials{Lookup: env(m)}.Credentials()
			var ce *enrich.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if enrich.KindOf(err) != enrich.KindConfiguration {
				t.Fatalf("unexpected kind %v", enrich.KindOf(err))
			}
		})
	}
}

func TestSecretsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.json")
	if err := os.WriteFile(path, []byte(`{"zoominfo":{"clientId":"id","additionalSecretPrivateKey":"key"}}`), 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	creds, err := enrich.SecretsFile{Path: path}.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.ClientID != "id" || creds.PrivateKey != "key" {
		t.Fatalf("unexpected credentials %#v", creds)
	}

	if _, err := (enrich.SecretsFile{Path: path, Source: "other"}).Credentials(); enrich.KindOf(err) != enrich.KindConfiguration {
		t.Fatalf("expected configuration error for unknown source, got %v", err)
	}
	if _, err := (enrich.SecretsFile{Path: filepath.Join(dir, "missing.json")}).Credentials(); enrich.KindOf(err) != enrich.KindConfiguration {
		t.Fatalf("expected configuration error for missing file, got %v", err)
	}
}

func TestZoomInfoTokens(t *testing.T) {
	srv := mockzoominfo.New()
	srv.RequireCredentials("id", "key")
	tokens := enrich.ZoomInfoTokens{Client: newMock(t, srv)}

	tok, err := tokens.AcquireToken(context.Background(), enrich.Credentials{ClientID: "id", PrivateKey: "key"})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if tok != enrich.Token(mockzoominfo.DefaultToken) {
		t.Fatalf("unexpected token %q", tok)
	}

	_, err = tokens.AcquireToken(context.Background(), enrich.Credentials{ClientID: "id", PrivateKey: "wrong"})
	var ae *enrich.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected APIError, got %v", err)
	}
	var he *zoominfo.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected wrapped 401, got %v", err)
	}
}

func TestZoomInfoTokens_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mockzoominfo.Server)
	}{
		{name: "server error", setup: func(s *mockzoominfo.Server) { s.FailAuthentication(http.StatusInternalServerError) }},
		{name: "missing jwt", setup: func(s *mockzoominfo.Server) { s.IssueToken("") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockzoominfo.New()
			tt.setup(srv)
			_, err := enrich.ZoomInfoTokens{Client: newMock(t, srv)}.AcquireToken(context.Background(), enrich.Credentials{ClientID: "a", PrivateKey: "b"})
			if enrich.KindOf(err) != enrich.KindAPI {
				t.Fatalf("expected api error, got %v", err)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()
		c, err := zoominfo.NewClient(zoominfo.Config{BaseURL: url, Timeout: time.Second})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		_, err = enrich.ZoomInfoTokens{Client: c}.AcquireToken(context.Background(), enrich.Credentials{ClientID: "a", PrivateKey: "b"})
		if enrich.KindOf(err) != enrich.KindAPI {
			t.Fatalf("expected api error, got %v", err)
		}
	})
}

func TestEnrichOne_FirstMatch(t *testing.T) {
	srv := mockzoominfo.New()
	srv.AddCompany("Microsoft",
		mockzoominfo.Company{
			"website":       "microsoft.com",
			"industry":      "Software",
			"revenue":       211900000000,
			"employeeCount": 221000,
			"hqLocation":    map[string]any{"city": "Redmond"},
		},
		mockzoominfo.Company{"website": "second.example"},
	)
	e := enrich.NewZoomInfoEnricher(newMock(t, srv), enrich.EnricherConfig{})

	out := e.EnrichOne(context.Background(), "Microsoft", mockzoominfo.DefaultToken)
	if out.Kind != enrich.OutcomeFound {
		t.Fatalf("expected found, got %v (%v)", out.Kind, out.Err)
	}
	got := out.Attributes
	want := map[string]string{
		"website":        "microsoft.com",
		"industry":       "Software",
		"revenue":        "211900000000",
		"employee_count": "221000",
		"hq_location":    "Redmond",
	}
	for i, v := range got.Columns() {
		name := enrich.AttributeNames[i]
		if v == nil || *v != want[name] {
			t.Fatalf("%s: got %v want %q", name, v, want[name])
		}
	}
}

func TestEnrichOne_MissingFieldsAreNil(t *testing.T) {
	srv := mockzoominfo.New()
	srv.AddCompany("Sparse", mockzoominfo.Company{"website": "sparse.example", "industry": nil})
	e := enrich.NewZoomInfoEnricher(newMock(t, srv), enrich.EnricherConfig{})

	out := e.EnrichOne(context.Background(), "Sparse", mockzoominfo.DefaultToken)
	if out.Kind != enrich.OutcomeFound {
		t.Fatalf("expected found, got %v", out.Kind)
	}
	a := out.Attributes
	if a.Website == nil || *a.Website != "sparse.example" {
		t.Fatalf("unexpected website %v", a.Website)
	}
	if a.Industry != nil || a.Revenue != nil || a.EmployeeCount != nil || a.HQLocation != nil {
		t.Fatalf("expected nil attributes, got %#v", a)
	}
}

func TestEnrichOne_NotFoundAndSoftFailures(t *testing.T) {
	srv := mockzoominfo.New()
	srv.FailCompany("Broken", http.StatusInternalServerError)
	srv.FailCompany("Forbidden", http.StatusForbidden)
	e := enrich.NewZoomInfoEnricher(newMock(t, srv), enrich.EnricherConfig{})

	for _, name := range []string{"Nobody", "Broken", "Forbidden"} {
		out := e.EnrichOne(context.Background(), name, mockzoominfo.DefaultToken)
		if out.Kind != enrich.OutcomeNotFound {
			t.Fatalf("%s: expected not found, got %v", name, out.Kind)
		}
	}
	// One attempt each with retries disabled.
	if got := len(srv.SearchCalls()); got != 3 {
		t.Fatalf("expected 3 search calls, got %d", got)
	}
}

func TestEnrichOne_UnauthorizedIsFatal(t *testing.T) {
	srv := mockzoominfo.New()
	srv.MatchAll(mockzoominfo.Company{"website": "x.example"})
	e := enrich.NewZoomInfoEnricher(newMock(t, srv), enrich.EnricherConfig{MaxRetries: 3})

	out := e.EnrichOne(context.Background(), "Acme", "stale-token")
	if out.Kind != enrich.OutcomeFatal {
		t.Fatalf("expected fatal, got %v", out.Kind)
	}
	var ae *enrich.APIError
	if !errors.As(out.Err, &ae) || ae.Msg != "token expired or invalid" {
		t.Fatalf("unexpected error %v", out.Err)
	}
	if got := len(srv.SearchCalls()); got != 1 {
		t.Fatalf("401 must not be retried, got %d calls", got)
	}
}

func TestEnrichOne_RetriesTransientWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"companies":[{"website":"acme.example"}]}`)
	}))
	defer ts.Close()
	c, err := zoominfo.NewClient(zoominfo.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	e := enrich.NewZoomInfoEnricher(c, enrich.EnricherConfig{MaxRetries: 2})
	out := e.EnrichOne(context.Background(), "Acme", "tok")
	if out.Kind != enrich.OutcomeFound {
		t.Fatalf("expected found after retries, got %v", out.Kind)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestEnrichOne_UnparsableBodyIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()
	c, err := zoominfo.NewClient(zoominfo.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	out := enrich.NewZoomInfoEnricher(c, enrich.EnricherConfig{}).EnrichOne(context.Background(), "Acme", "tok")
	if out.Kind != enrich.OutcomeNotFound {
		t.Fatalf("expected not found, got %v", out.Kind)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &enrich.DataProcessingError{Msg: "bad"})
	if enrich.KindOf(wrapped) != enrich.KindDataProcessing {
		t.Fatalf("expected data processing kind")
	}
	if enrich.KindOf(errors.New("plain")) != enrich.KindUnknown {
		t.Fatalf("expected unknown kind")
	}
	if got := enrich.KindAPI.String(); got != "api_error" {
		t.Fatalf("unexpected kind string %q", got)
	}
}
