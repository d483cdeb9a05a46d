// Package scan pages through every issue in a project and emits the
// comments restricted to one group.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andywolf/groupcomments/internal/jira"
	"github.com/andywolf/groupcomments/internal/logging"
)

// searchFields is all the driver needs from each issue.
var searchFields = []string{"summary", "comment"}

// Searcher runs one page of a JQL search. *jira.Client satisfies it through
// Search or SearchPost.
type Searcher interface {
	Search(ctx context.Context, opts jira.SearchOptions) (*jira.SearchPage, error)
}

// SearchFunc adapts a function to Searcher.
type SearchFunc func(ctx context.Context, opts jira.SearchOptions) (*jira.SearchPage, error)

// Search calls f.
func (f SearchFunc) Search(ctx context.Context, opts jira.SearchOptions) (*jira.SearchPage, error) {
	return f(ctx, opts)
}

// IssueFetcher looks up a single issue.
type IssueFetcher interface {
	FetchIssue(ctx context.Context, key string, fields ...string) (*jira.Issue, error)
}

// Emitter receives each matching comment.
type Emitter interface {
	Emit(m Match) error
}

// Match is one group-restricted comment.
type Match struct {
	IssueKey  string `json:"issue_key"`
	Summary   string `json:"summary"`
	CommentID string `json:"comment_id"`
	Body      string `json:"body"`
}

// Stats summarises a run.
type Stats struct {
	Pages    int
	Issues   int
	Comments int
	Matches  int
}

// Options configures a Scanner.
type Options struct {
	Project  string
	Group    string
	PageSize int
}

// Scanner drives the search loop. It is not safe for concurrent use.
type Scanner struct {
	search   Searcher
	emit     Emitter
	logger   *logging.Logger
	project  string
	group    string
	pageSize int
}

// New creates a Scanner. A zero PageSize uses jira.DefaultMaxResults. The
// project may be left empty when only ScanIssue is used.
func New(search Searcher, emit Emitter, opts Options, logger *logging.Logger) (*Scanner, error) {
	if search == nil {
		return nil, errors.New("searcher is required")
	}
	if emit == nil {
		return nil, errors.New("emitter is required")
	}
	if strings.TrimSpace(opts.Group) == "" {
		return nil, errors.New("group name is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = jira.DefaultMaxResults
	}
	return &Scanner{
		search:   search,
		emit:     emit,
		logger:   logger,
		project:  opts.Project,
		group:    opts.Group,
		pageSize: pageSize,
	}, nil
}

// JQL returns the query scoping the search to the project.
func (s *Scanner) JQL() string {
	return ProjectJQL(s.project)
}

// Run visits every issue of the project once and emits the matching
// comments. Any failed page aborts the run; matches from earlier pages will
// already have been emitted.
func (s *Scanner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if strings.TrimSpace(s.project) == "" {
		return stats, errors.New("project key is required")
	}
	startAt := 0

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := s.search.Search(ctx, jira.SearchOptions{
			JQL:        s.JQL(),
			StartAt:    startAt,
			MaxResults: s.pageSize,
			Fields:     searchFields,
		})
		if err != nil {
			return stats, fmt.Errorf("search at offset %d: %w", startAt, err)
		}
		if page == nil {
			return stats, fmt.Errorf("search at offset %d: empty response", startAt)
		}
		stats.Pages++

		s.logger.Debug("fetched page", logging.Fields{
			"start_at": startAt,
			"issues":   len(page.Issues),
			"total":    page.Total,
		})

		for i := range page.Issues {
			if err := s.scanIssue(&page.Issues[i], &stats); err != nil {
				return stats, err
			}
		}

		if len(page.Issues) == 0 && startAt < page.Total {
			s.logger.Warning("search returned an empty page before reaching the reported total", logging.Fields{
				"start_at": startAt,
				"total":    page.Total,
			})
			return stats, nil
		}

		startAt += len(page.Issues)
		if startAt >= page.Total {
			return stats, nil
		}
	}
}

// ScanIssue applies the group filter to a single issue.
func (s *Scanner) ScanIssue(ctx context.Context, fetch IssueFetcher, key string) (Stats, error) {
	var stats Stats
	issue, err := fetch.FetchIssue(ctx, key, searchFields...)
	if err != nil {
		return stats, fmt.Errorf("fetch issue %s: %w", key, err)
	}
	err = s.scanIssue(issue, &stats)
	return stats, err
}

func (s *Scanner) scanIssue(issue *jira.Issue, stats *Stats) error {
	stats.Issues++
	for _, c := range issue.Comments() {
		stats.Comments++
		if !c.RestrictedToGroup(s.group) {
			continue
		}
		stats.Matches++
		m := Match{
			IssueKey:  issue.Key,
			Summary:   issue.Fields.Summary,
			CommentID: c.ID,
			Body:      c.Body,
		}
		if err := s.emit.Emit(m); err != nil {
			return fmt.Errorf("emit comment %s on %s: %w", c.ID, issue.Key, err)
		}
	}
	return nil
}

// ProjectJQL builds `project = "KEY"`, escaping the key for a JQL string
// literal.
func ProjectJQL(project string) string {
	return `project = "` + escapeJQL(project) + `"`
}

func escapeJQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
