package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andywolf/groupcomments/internal/logging"
)

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: serverURL, Username: "alice", Password: "s3cret"}, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "empty", baseURL: ""},
		{name: "relative", baseURL: "jira.example.com"},
		{name: "unsupported scheme", baseURL: "ftp://jira.example.com"},
		{name: "unparseable", baseURL: "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(Config{BaseURL: tt.baseURL}); err == nil {
				t.Errorf("NewClient(%q) expected error", tt.baseURL)
			}
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := newTestClient(t, "https://jira.example.com/")
	if c.apiRoot != "https://jira.example.com/rest/api/2" {
		t.Errorf("apiRoot = %q", c.apiRoot)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}

	c = newTestClient(t, "https://example.com/jira", WithTimeout(5*time.Second))
	if c.apiRoot != "https://example.com/jira/rest/api/2" {
		t.Errorf("apiRoot with context path = %q", c.apiRoot)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.httpClient.Timeout)
	}
}

func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/rest/api/2/issue/ABC-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "s3cret" {
			t.Errorf("unexpected basic auth: %q %q %v", user, pass, ok)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("unexpected accept header: %s", accept)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "groupcomments/") {
			t.Errorf("unexpected user agent: %s", ua)
		}
		_, _ = io.WriteString(w, `{"key":"ABC-1","fields":{"summary":"Broken login"}}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	issue, err := c.FetchIssue(context.Background(), "ABC-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issue.Key != "ABC-1" || issue.Fields.Summary != "Broken login" {
		t.Errorf("unexpected issue: %+v", issue)
	}
	if issue.Comments() != nil {
		t.Errorf("expected no comments, got %v", issue.Comments())
	}
}

func TestFetchIssue_Fields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fields"); got != "summary,comment" {
			t.Errorf("fields = %q", got)
		}
		_, _ = io.WriteString(w, `{"key":"ABC-2","fields":{"summary":"s","comment":{"comments":[{"id":"7","body":"b"}]}}}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	issue, err := c.FetchIssue(context.Background(), "ABC-2", "summary", "comment")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issue.Comments()) != 1 || issue.Comments()[0].ID != "7" {
		t.Errorf("unexpected comments: %+v", issue.Comments())
	}
}

func TestSearch_QueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("jql") != `project = "ABC"` {
			t.Errorf("jql = %q", q.Get("jql"))
		}
		if q.Get("fields") != "summary,comment" {
			t.Errorf("fields = %q", q.Get("fields"))
		}
		if q.Get("startAt") != "2" {
			t.Errorf("startAt = %q", q.Get("startAt"))
		}
		if q.Get("maxResults") != "50" {
			t.Errorf("maxResults = %q", q.Get("maxResults"))
		}
		_, _ = io.WriteString(w, `{"startAt":2,"maxResults":50,"total":3,"issues":[{"key":"ABC-3","fields":{"summary":"third"}}]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	page, err := c.Search(context.Background(), SearchOptions{
		JQL:        `project = "ABC"`,
		StartAt:    2,
		MaxResults: 50,
		Fields:     []string{"summary", "comment"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 || len(page.Issues) != 1 || page.Issues[0].Key != "ABC-3" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestSearch_Defaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("startAt") != "0" {
			t.Errorf("startAt = %q, want 0", q.Get("startAt"))
		}
		if q.Get("maxResults") != "1000" {
			t.Errorf("maxResults = %q, want 1000", q.Get("maxResults"))
		}
		if q.Get("fields") != "*navigable" {
			t.Errorf("fields = %q, want *navigable", q.Get("fields"))
		}
		_, _ = io.WriteString(w, `{"total":0,"issues":[]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	page, err := c.Search(context.Background(), SearchOptions{JQL: "project = X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 0 || len(page.Issues) != 0 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestSearchPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		var body struct {
			JQL        string   `json:"jql"`
			Fields     []string `json:"fields"`
			StartAt    int      `json:"startAt"`
			MaxResults int      `json:"maxResults"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.JQL != "project = ABC" || body.StartAt != 1000 || body.MaxResults != 1000 {
			t.Errorf("unexpected body: %+v", body)
		}
		if len(body.Fields) != 1 || body.Fields[0] != "*navigable" {
			t.Errorf("unexpected fields: %v", body.Fields)
		}
		_, _ = io.WriteString(w, `{"total":1001,"issues":[{"key":"ABC-1001"}]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	page, err := c.SearchPost(context.Background(), SearchOptions{JQL: "project = ABC", StartAt: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 1001 || page.Issues[0].Key != "ABC-1001" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestGet_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seraph-Loginreason", "AUTHENTICATION_DENIED")
		w.Header().Set("Set-Cookie", "JSESSIONID=abc")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"errorMessages":["CAPTCHA required"],"errors":{}}`)
	}))
	defer server.Close()

	var logBuf bytes.Buffer
	logger := logging.New(logging.WithWriter(&logBuf), logging.WithFormat(logging.FormatJSON))
	c := newTestClient(t, server.URL, WithLogger(logger))

	page, err := c.Search(context.Background(), SearchOptions{JQL: "project = ABC"})
	if page != nil {
		t.Errorf("expected nil page, got %+v", page)
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.Method != http.MethodGet {
		t.Errorf("Method = %q", se.Method)
	}
	if !strings.HasPrefix(se.URL, server.URL+"/rest/api/2/search?") {
		t.Errorf("URL = %q", se.URL)
	}
	if len(se.Messages) != 1 || se.Messages[0] != "CAPTCHA required" {
		t.Errorf("Messages = %v", se.Messages)
	}
	if !strings.Contains(err.Error(), "unexpected status 403: CAPTCHA required") {
		t.Errorf("Error() = %q", err.Error())
	}

	var entry logging.LogEntry
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log entry: %v (%q)", err, logBuf.String())
	}
	if entry.Severity != logging.SeverityError {
		t.Errorf("Severity = %q", entry.Severity)
	}
	if entry.Fields["status"] != float64(403) {
		t.Errorf("status field = %v", entry.Fields["status"])
	}
	if entry.Fields["url"] != se.URL {
		t.Errorf("url field = %v", entry.Fields["url"])
	}
	if !strings.Contains(entry.Fields["body"].(string), "CAPTCHA required") {
		t.Errorf("body field = %v", entry.Fields["body"])
	}
	headers, ok := entry.Fields["headers"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected headers on 403, got %v", entry.Fields["headers"])
	}
	if headers["X-Seraph-Loginreason"] != "AUTHENTICATION_DENIED" {
		t.Errorf("login reason header = %v", headers["X-Seraph-Loginreason"])
	}
	if headers["Set-Cookie"] != "[REDACTED]" {
		t.Errorf("cookie header not redacted: %v", headers["Set-Cookie"])
	}
}

func TestPost_FailureReportsRequestBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errorMessages":[],"errors":{"jql":"bad query"}}`)
	}))
	defer server.Close()

	var logBuf bytes.Buffer
	logger := logging.New(logging.WithWriter(&logBuf), logging.WithFormat(logging.FormatJSON))
	c := newTestClient(t, server.URL, WithLogger(logger))

	err := c.Post(context.Background(), "/search", map[string]string{"jql": "((("}, nil)
	if !IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
	if !strings.Contains(err.Error(), "jql: bad query") {
		t.Errorf("Error() = %q", err.Error())
	}

	var entry logging.LogEntry
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	if entry.Fields["request_body"] != `{"jql":"((("}` {
		t.Errorf("request_body = %v", entry.Fields["request_body"])
	}
	if _, ok := entry.Fields["headers"]; ok {
		t.Error("headers should only be reported on 403")
	}
}

func TestGet_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>proxy error</html>")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Myself(context.Background())
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected 502, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "unexpected status 502: <html>proxy error</html>") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestGet_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	_, err := c.Myself(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Errorf("transport failure should not be a StatusError: %v", err)
	}
	if !strings.Contains(err.Error(), "executing request GET /myself") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestGet_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total": "many"`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Search(context.Background(), SearchOptions{JQL: "project = X"})
	if err == nil || !strings.Contains(err.Error(), "decoding response from GET /search") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestGet_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server.URL, WithTimeout(50*time.Millisecond))
	if _, err := c.Myself(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestMyself(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/myself" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"name":"alice","displayName":"Alice A.","active":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	me, err := c.Myself(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if me.DisplayName != "Alice A." || !me.Active {
		t.Errorf("unexpected user: %+v", me)
	}
}

func TestComment_RestrictedToGroup(t *testing.T) {
	tests := []struct {
		name       string
		visibility *Visibility
		group      string
		want       bool
	}{
		{name: "no visibility", visibility: nil, group: "devs", want: false},
		{name: "exact group", visibility: &Visibility{Type: "group", Value: "devs"}, group: "devs", want: true},
		{name: "case-insensitive group", visibility: &Visibility{Type: "group", Value: "DevS"}, group: "dEVs", want: true},
		{name: "role with same value", visibility: &Visibility{Type: "role", Value: "devs"}, group: "devs", want: false},
		{name: "type is case-sensitive", visibility: &Visibility{Type: "Group", Value: "devs"}, group: "devs", want: false},
		{name: "other group", visibility: &Visibility{Type: "group", Value: "admins"}, group: "devs", want: false},
		{name: "non-ascii fold", visibility: &Visibility{Type: "group", Value: "ÉQUIPE"}, group: "équipe", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Comment{ID: "1", Visibility: tt.visibility}
			if got := c.RestrictedToGroup(tt.group); got != tt.want {
				t.Errorf("RestrictedToGroup(%q) = %v, want %v", tt.group, got, tt.want)
			}
		})
	}
}

func TestIssue_UnmarshalVisibility(t *testing.T) {
	raw := `{"key":"ABC-1","fields":{"summary":"s","comment":{"comments":[
		{"id":"10","body":"public"},
		{"id":"11","body":"secret","visibility":{"type":"group","value":"devs"}}
	]}}}`

	var issue Issue
	if err := json.Unmarshal([]byte(raw), &issue); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	comments := issue.Comments()
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].Visibility != nil {
		t.Errorf("expected no visibility on public comment")
	}
	if comments[1].Visibility == nil || comments[1].Visibility.Value != "devs" {
		t.Errorf("unexpected visibility: %+v", comments[1].Visibility)
	}
}
