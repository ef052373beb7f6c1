package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	got, err := credentials(Config{CredentialsJSON: ` {"type":"service_account"} `})
	if err != nil || string(got) != `{"type":"service_account"}` {
		t.Fatalf("inline json: got %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}
	got, err = credentials(Config{CredentialsFile: path})
	if err != nil || string(got) != `{}` {
		t.Fatalf("file: got %q, %v", got, err)
	}

	if _, err := credentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := credentials(Config{}); err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
}

func TestAppendRows_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.AppendRows(context.Background(), [][]any{{"x"}}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestAppendRows(t *testing.T) {
	var gotPath, gotQuery string
	var gotBody struct {
		Values [][]any `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid","updates":{"updatedRange":"Budgets!A2:L3","updatedRows":2}}`))
	}))
	defer srv.Close()

	c, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "sid"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}

	ref, err := c.AppendRows(context.Background(), [][]any{{"a", 1}, {"b", 2}})
	if err != nil {
		t.Fatal(err)
	}
	if ref != "Budgets!A2:L3" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sid/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") || !strings.Contains(gotQuery, "insertDataOption=INSERT_ROWS") {
		t.Errorf("query = %q", gotQuery)
	}
	if len(gotBody.Values) != 2 {
		t.Errorf("sent %d rows, want 2", len(gotBody.Values))
	}
}
