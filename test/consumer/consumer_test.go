package consumer

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/shpitdev/company-enricher/pkg/mockzoominfo"
	"github.com/shpitdev/company-enricher/pkg/pipeline/core"
	localio "github.com/shpitdev/company-enricher/pkg/pipeline/io/local"
	"github.com/shpitdev/company-enricher/pkg/pipeline/retry"
	"github.com/shpitdev/company-enricher/pkg/pipeline/schema"
	"github.com/shpitdev/company-enricher/pkg/zoominfo"
)

func TestPublicPackagesCompile(t *testing.T) {
	t.Parallel()

	srv := mockzoominfo.New()
	srv.AddCompany("Acme", mockzoominfo.Company{"website": "acme.test"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client, err := zoominfo.NewClient(zoominfo.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	token, err := client.Authenticate(context.Background(), "id", "key")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	resp, err := retry.Do(context.Background(), retry.Options{MaxRetries: 1}, func(ctx context.Context) (zoominfo.SearchResponse, error) {
		return client.SearchCompany(ctx, token, "Acme")
	})
	if err != nil {
		t.Fatalf("SearchCompany failed: %v", err)
	}
	if len(resp.Companies) != 1 || resp.Companies[0].Website.Ptr() == nil {
		t.Fatalf("unexpected search response: %#v", resp)
	}

	if !retry.IsTransient(&core.TransientError{}) {
		t.Fatalf("TransientError must be transient")
	}

	tbl, err := localio.ReadTable(bytes.NewBufferString("company_name\nAcme\n"))
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	contract := schema.Contract{Required: []string{"company_name"}, Appended: []string{"enriched_website"}}
	if err := contract.Validate(tbl.Header); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	header, idx := contract.OutputColumns(tbl.Header)
	if len(header) != 2 || idx[0] != 1 {
		t.Fatalf("unexpected output columns: %v %v", header, idx)
	}
}
