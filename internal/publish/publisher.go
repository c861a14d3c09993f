// internal/publish/publisher.go
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
	"github.com/xkilldash9x/logsurgeon/internal/llmutil"
)

// titleMessageLimit bounds the exception message carried into an issue
// title; GitHub rejects titles over 256 characters.
const titleMessageLimit = 120

// issueCreator is the slice of the GitHub issues API the publisher needs,
// extracted so tests can substitute a fake.
type issueCreator interface {
	Create(ctx context.Context, owner, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
}

// GitHubPublisher files one tracker issue per actionable fix outcome of a
// finished run.
type GitHubPublisher struct {
	issues issueCreator
	cfg    config.PublishConfig
	log    *zap.Logger
}

// NewGitHubPublisher creates a publisher backed by an authenticated GitHub
// client.
func NewGitHubPublisher(ctx context.Context, cfg config.PublishConfig, logger *zap.Logger) (*GitHubPublisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("publishing is not enabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid publish configuration: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	return &GitHubPublisher{
		issues: client.Issues,
		cfg:    cfg,
		log:    logger.Named("publish"),
	}, nil
}

// PublishRun creates one issue per actionable outcome whose confidence
// clears the configured floor. Issues already created are reported in the
// returned URLs even when a later creation fails.
func (p *GitHubPublisher) PublishRun(ctx context.Context, result *schemas.RunResult) ([]string, error) {
	if result == nil {
		return nil, fmt.Errorf("cannot publish a nil run result")
	}

	urls := make([]string, 0, len(result.Outcomes))
	for i := range result.Outcomes {
		outcome := &result.Outcomes[i]
		if !outcome.Actionable() || outcome.Confidence < p.cfg.MinConfidence {
			continue
		}
		if outcome.RecordIndex < 0 || outcome.RecordIndex >= len(result.Records) {
			p.log.Warn("Skipping outcome with no matching record.",
				zap.Int("record_index", outcome.RecordIndex))
			continue
		}
		if err := ctx.Err(); err != nil {
			return urls, fmt.Errorf("publishing interrupted: %w", err)
		}

		record := &result.Records[outcome.RecordIndex]
		req := &github.IssueRequest{
			Title:  github.String(issueTitle(record)),
			Body:   github.String(issueBody(result, record, outcome)),
			Labels: p.issueLabels(record),
		}

		issue, _, err := p.issues.Create(ctx, p.cfg.RepoOwner, p.cfg.RepoName, req)
		if err != nil {
			return urls, fmt.Errorf("failed to create issue for record %d: %w", outcome.RecordIndex, err)
		}

		url := issue.GetHTMLURL()
		urls = append(urls, url)
		p.log.Info("Created fix issue.",
			zap.String("exception_type", record.Type),
			zap.String("url", url))
	}

	return urls, nil
}

func issueTitle(record *schemas.ExceptionRecord) string {
	message := strings.TrimSpace(record.Message)
	if message == "" {
		return fmt.Sprintf("[logsurgeon] %s", record.Type)
	}
	return fmt.Sprintf("[logsurgeon] %s: %s", record.Type, llmutil.Truncate(message, titleMessageLimit))
}

// issueLabels combines the configured labels with a severity marker.
func (p *GitHubPublisher) issueLabels(record *schemas.ExceptionRecord) *[]string {
	labels := make([]string, 0, len(p.cfg.Labels)+1)
	labels = append(labels, p.cfg.Labels...)
	if record.Severity != "" {
		labels = append(labels, "severity:"+strings.ToLower(string(record.Severity)))
	}
	return &labels
}

// issueBody renders the markdown body for one outcome, mirroring the fix
// sections of the full report.
func issueBody(result *schemas.RunResult, record *schemas.ExceptionRecord, outcome *schemas.FixOutcome) string {
	var b strings.Builder

	b.WriteString("## Exception\n\n")
	fmt.Fprintf(&b, "- **Type**: %s\n", record.Type)
	if record.Message != "" {
		fmt.Fprintf(&b, "- **Message**: %s\n", record.Message)
	}
	fmt.Fprintf(&b, "- **Severity**: %s\n", record.Severity)
	if frame := record.InnermostFrame(); frame != nil {
		loc := frame.File
		if frame.Line > 0 {
			loc = fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		fmt.Fprintf(&b, "- **Location**: %s.%s() at %s\n", frame.Class, frame.Method, loc)
	}
	fmt.Fprintf(&b, "- **Log**: %s:%d\n", record.FilePath, record.StartLine)

	b.WriteString("\n## Suggested Fix\n\n")
	if outcome.RootCause != "" {
		fmt.Fprintf(&b, "**Root Cause**: %s\n\n", outcome.RootCause)
	}
	if outcome.FixDescription != "" {
		fmt.Fprintf(&b, "**Fix Description**: %s\n\n", outcome.FixDescription)
	}
	fmt.Fprintf(&b, "**Confidence Score**: %.2f\n", outcome.Confidence)

	for i, s := range outcome.Suggestions {
		fmt.Fprintf(&b, "\n%d. **File**: `%s`\n", i+1, s.File)
		if s.Symbol != "" {
			fmt.Fprintf(&b, "   **Symbol**: `%s`\n", s.Symbol)
		}
		if s.Description != "" {
			fmt.Fprintf(&b, "   **Description**: %s\n", s.Description)
		}
		if s.Code != "" {
			b.WriteString("\n   ```java\n")
			for _, line := range strings.Split(strings.TrimRight(s.Code, "\n"), "\n") {
				fmt.Fprintf(&b, "   %s\n", line)
			}
			b.WriteString("   ```\n")
		}
		if s.Explanation != "" {
			fmt.Fprintf(&b, "   **Explanation**: %s\n", s.Explanation)
		}
	}

	if len(outcome.PreventionTips) > 0 {
		b.WriteString("\n## Prevention\n\n")
		for _, tip := range outcome.PreventionTips {
			fmt.Fprintf(&b, "- %s\n", tip)
		}
	}

	fmt.Fprintf(&b, "\n---\n_Run %s for %s_\n", result.RunID, result.FilePath)
	return b.String()
}
