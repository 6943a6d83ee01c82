package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/company-enricher/pkg/mockzoominfo"
)

func main() {
	addr := defaultString("MOCK_ZOOMINFO_ADDR", ":8080")
	fixtures := defaultString("MOCK_ZOOMINFO_FIXTURES", "")
	clientID := defaultString("MOCK_ZOOMINFO_CLIENT_ID", "")
	privateKey := defaultString("MOCK_ZOOMINFO_PRIVATE_KEY", "")

	fs := flag.NewFlagSet("mock-zoominfo", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&fixtures, "fixtures", fixtures, `JSON file mapping company name -> list of matches; key "*" matches every other name`)
	fs.StringVar(&clientID, "client-id", clientID, "Require this client id (with --private-key); empty accepts any")
	fs.StringVar(&privateKey, "private-key", privateKey, "Require this private key (with --client-id)")
	_ = fs.Parse(os.Args[1:])

	srv := mockzoominfo.New()
	if clientID != "" || privateKey != "" {
		srv.RequireCredentials(clientID, privateKey)
	}
	if fixtures != "" {
		n, err := loadFixtures(srv, fixtures)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "fixtures error: %v\n", err)
			os.Exit(2)
		}
		_, _ = fmt.Fprintf(os.Stdout, "loaded %d fixture companies from %s\n", n, fixtures)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-zoominfo listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func loadFixtures(srv *mockzoominfo.Server, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var all map[string][]mockzoominfo.Company
	if err := json.Unmarshal(b, &all); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	for name, matches := range all {
		if name == "*" {
			srv.MatchAll(matches...)
			continue
		}
		srv.AddCompany(name, matches...)
	}
	return len(all), nil
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
