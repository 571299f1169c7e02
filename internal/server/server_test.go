package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/revgraph/pkg/revision"
	"github.com/matzehuels/revgraph/pkg/version"
)

func testServer(t *testing.T, store version.Store) *httptest.Server {
	t.Helper()
	m := revision.NewMap(func() ([]*revision.Revision, error) {
		a, _ := revision.NewRevision("1975ea83b712", nil, revision.WithBranchLabels("accounts"), revision.WithDoc("create account"))
		b, _ := revision.NewRevision("ae1027a6acf", []string{"1975ea83b712"}, revision.WithDoc("add column"))
		c, _ := revision.NewRevision("27c6a30d7c24", []string{"1975ea83b712"}, revision.WithDoc("add index"))
		return []*revision.Revision{a, b, c}, nil
	})
	srv := httptest.NewServer((&Server{Map: m, Store: store}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestHeads(t *testing.T) {
	srv := testServer(t, nil)
	var body struct {
		Heads []summaryJSON `json:"heads"`
	}
	if code := get(t, srv, "/heads", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var got []string
	for _, h := range body.Heads {
		got = append(got, h.ID)
	}
	if !slices.Equal(got, []string{"ae1027a6acf", "27c6a30d7c24"}) {
		t.Errorf("heads = %v", got)
	}
}

func TestBranches(t *testing.T) {
	srv := testServer(t, nil)
	var body struct {
		Branches []branchJSON `json:"branches"`
	}
	get(t, srv, "/branches", &body)
	if len(body.Branches) != 1 {
		t.Fatalf("branches = %+v", body.Branches)
	}
	b := body.Branches[0]
	if b.Label != "accounts" || b.Revision != "1975ea83b712" || len(b.Heads) != 2 {
		t.Errorf("branch = %+v", b)
	}
}

func TestHistory(t *testing.T) {
	srv := testServer(t, nil)
	var body struct {
		Revisions []summaryJSON `json:"revisions"`
	}
	if code := get(t, srv, "/history?range=:ae10", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Revisions) != 2 || body.Revisions[0].ID != "ae1027a6acf" {
		t.Errorf("history = %+v", body.Revisions)
	}
}

func TestRevision(t *testing.T) {
	srv := testServer(t, nil)
	var d detailJSON
	if code := get(t, srv, "/revisions/1975", &d); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if d.ID != "1975ea83b712" || !d.IsBase || !d.IsBranchPoint || len(d.NextRevisions) != 2 {
		t.Errorf("detail = %+v", d)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := testServer(t, nil)
	tests := []struct {
		path string
		want int
		code string
	}{
		{"/revisions/nope", http.StatusNotFound, "REVISION_NOT_FOUND"},
		{"/revisions/head", http.StatusConflict, "MULTIPLE_HEADS"},
		{"/revisions/base", http.StatusNotFound, "NOT_FOUND"},
		{"/history?range=ae10:27c6", http.StatusBadRequest, "RANGE_NOT_ANCESTOR"},
		{"/history?range=ae10", http.StatusBadRequest, "INVALID_INPUT"},
		{"/graph/png", http.StatusBadRequest, "INVALID_INPUT"},
		{"/current", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var body errorJSON
			if got := get(t, srv, tt.path, &body); got != tt.want {
				t.Errorf("status = %d, want %d (%+v)", got, tt.want, body)
			}
			if string(body.Code) != tt.code {
				t.Errorf("code = %s, want %s", body.Code, tt.code)
			}
		})
	}

	var body errorJSON
	get(t, srv, "/revisions/head", &body)
	if len(body.Heads) != 2 {
		t.Errorf("multiple heads body = %+v", body)
	}
}

func TestCurrent(t *testing.T) {
	store := version.NewMemoryStore()
	store.Insert(context.Background(), "ae1027a6acf")
	srv := testServer(t, store)

	var body struct {
		Current []summaryJSON `json:"current"`
	}
	if code := get(t, srv, "/current", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Current) != 1 || body.Current[0].ID != "ae1027a6acf" {
		t.Errorf("current = %+v", body.Current)
	}
}

func TestGraphDOT(t *testing.T) {
	srv := testServer(t, nil)
	resp, err := http.Get(srv.URL + "/graph/dot")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("Content-Type") != "text/vnd.graphviz" || !strings.HasPrefix(string(data), "digraph revisions {") {
		t.Errorf("graph = %s %q", resp.Header.Get("Content-Type"), data)
	}
}
