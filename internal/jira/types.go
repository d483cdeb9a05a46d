package jira

import "strings"

// Visibility types a comment restriction can carry.
const (
	VisibilityGroup = "group"
	VisibilityRole  = "role"
)

// SearchPage is one page of results from /rest/api/2/search.
type SearchPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a single JIRA issue.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the subset of issue fields the tool requests.
type IssueFields struct {
	Summary string       `json:"summary"`
	Comment *CommentPage `json:"comment,omitempty"`
}

// Comments returns the issue's comments, or nil when the comment field was
// not returned.
func (i *Issue) Comments() []Comment {
	if i.Fields.Comment == nil {
		return nil
	}
	return i.Fields.Comment.Comments
}

// CommentPage holds the comment list embedded in an issue.
type CommentPage struct {
	Comments   []Comment `json:"comments"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	StartAt    int       `json:"startAt"`
}

// Comment represents a single comment on an issue.
type Comment struct {
	ID         string      `json:"id"`
	Body       string      `json:"body"`
	Author     *User       `json:"author,omitempty"`
	Created    string      `json:"created,omitempty"`
	Updated    string      `json:"updated,omitempty"`
	Visibility *Visibility `json:"visibility,omitempty"`
}

// Visibility restricts who may see a comment.
type Visibility struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RestrictedToGroup reports whether the comment is visible only to the named
// group. The group name is compared case-insensitively; the restriction type
// must be exactly "group".
func (c *Comment) RestrictedToGroup(group string) bool {
	if c.Visibility == nil {
		return false
	}
	return c.Visibility.Type == VisibilityGroup && strings.EqualFold(c.Visibility.Value, group)
}

// User represents a JIRA user.
type User struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// ErrorResponse is the standard JIRA error body.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
