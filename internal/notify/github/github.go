// Package github opens an issue in a maintenance tracker repository for
// each escalated or abandoned conversation, so equipment failures that
// needed a supervisor get a follow-up record.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/zulandar/watchtower/internal/notify"
)

// Notifier files issues.
type Notifier struct {
	issues issuesService
	owner  string
	repo   string
	labels []string
}

type issuesService interface {
	Create(ctx context.Context, owner, repo string, issue *gh.IssueRequest) (*gh.Issue, *gh.Response, error)
}

// Opts holds parameters for creating a GitHub Notifier.
type Opts struct {
	Token   string
	Owner   string
	Repo    string
	Labels  []string
	BaseURL string // API root, for GitHub Enterprise or tests
}

// New creates a GitHub Notifier authenticated with a static token.
func New(ctx context.Context, opts Opts) (*Notifier, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	client := gh.NewClient(httpClient)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github: parse base url: %w", err)
		}
		client.BaseURL = u
	}
	return &Notifier{issues: client.Issues, owner: opts.Owner, repo: opts.Repo, labels: opts.Labels}, nil
}

// Name implements notify.Notifier.
func (n *Notifier) Name() string { return "github" }

// Notify implements notify.Notifier. Idle warnings are skipped; only
// escalations and abandoned conversations become issues.
func (n *Notifier) Notify(ctx context.Context, a notify.Alert) error {
	if a.Kind == notify.KindIdle {
		return nil
	}
	labels := append([]string{string(a.Kind)}, n.labels...)
	req := &gh.IssueRequest{
		Title:  gh.Ptr(a.Title()),
		Body:   gh.Ptr(issueBody(a)),
		Labels: &labels,
	}
	if _, _, err := n.issues.Create(ctx, n.owner, n.repo, req); err != nil {
		return fmt.Errorf("github: create issue in %s/%s: %w", n.owner, n.repo, err)
	}
	return nil
}

// issueBody renders the alert as markdown.
func issueBody(a notify.Alert) string {
	var b strings.Builder
	b.WriteString(a.SMSText())
	b.WriteString("\n\n| | |\n|---|---|\n")
	for _, f := range a.Fields() {
		if f.Name == "Completed steps" {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", f.Name, strings.ReplaceAll(f.Value, "\n", " "))
	}
	if len(a.Completed) > 0 {
		b.WriteString("\n### Completed steps\n\n")
		for _, s := range a.Completed {
			fmt.Fprintf(&b, "- [x] %s\n", s)
		}
	}
	if !a.At.IsZero() {
		fmt.Fprintf(&b, "\n_Reported %s_\n", a.At.UTC().Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}
