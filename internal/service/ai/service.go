package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/llm"
	"github.com/jiralite/api/internal/repository"
	"github.com/jiralite/api/internal/service/access"
)

const (
	minDescriptionLen  = 10
	minThreadComments  = 5
	maxThreadComments  = 20
	maxLabelSuggestion = 3
)

// Result is a generated or cached completion.
type Result struct {
	Text   string `json:"result"`
	Cached bool   `json:"cached"`
}

// Service orchestrates the AI features: access check, rate limiting,
// caching, provider calls and result persistence.
type Service struct {
	issues    repository.IssueRepository
	comments  repository.CommentRepository
	projects  repository.ProjectRepository
	resolver  access.Resolver
	limiter   Limiter
	generator llm.Generator
	logger    *slog.Logger
}

// New constructs a Service.
func New(issues repository.IssueRepository, comments repository.CommentRepository, projects repository.ProjectRepository, resolver access.Resolver, limiter Limiter, generator llm.Generator, logger *slog.Logger) Service {
	return Service{
		issues:    issues,
		comments:  comments,
		projects:  projects,
		resolver:  resolver,
		limiter:   limiter,
		generator: generator,
		logger:    logger,
	}
}

func (s Service) complete(ctx context.Context, system, prompt string) (string, error) {
	text, err := s.generator.Complete(ctx, system, prompt)
	if err != nil {
		return "", apperr.Upstream("AI request failed, please try again later")
	}
	return text, nil
}

// IssueSummary returns a short summary of the issue description. The first
// successful generation is persisted on the issue and served from there
// afterwards; cached responses do not count against the rate limit.
func (s Service) IssueSummary(ctx context.Context, userID, issueID string) (*Result, error) {
	issue, err := s.resolver.IssueAccess(ctx, userID, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, userID); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(issue.Description) <= minDescriptionLen {
		return nil, apperr.Validation("Issue description must be more than 10 characters")
	}
	if issue.AISummary != nil && issue.AISummaryCachedAt != nil {
		return &Result{Text: *issue.AISummary, Cached: true}, nil
	}

	prompt := fmt.Sprintf(`Summarize the following issue description in 2-4 sentences.
Be concise and focus on the main points:

%s

Summary:`, issue.Description)
	system := "You are a helpful assistant that summarizes technical issue descriptions concisely."

	summary, err := s.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	if err := s.issues.SetIssueSummary(ctx, issueID, summary, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.limiter.Increment(ctx, userID); err != nil {
		s.logger.Warn("rate limit increment failed", "user_id", userID, "error", err)
	}
	return &Result{Text: summary, Cached: false}, nil
}

// IssueSuggestion returns a suggested approach to solving the issue, with
// the same caching behavior as IssueSummary.
func (s Service) IssueSuggestion(ctx context.Context, userID, issueID string) (*Result, error) {
	issue, err := s.resolver.IssueAccess(ctx, userID, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, userID); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(issue.Description) <= minDescriptionLen {
		return nil, apperr.Validation("Issue description must be more than 10 characters")
	}
	if issue.AISuggestion != nil && issue.AISuggestionCachedAt != nil {
		return &Result{Text: *issue.AISuggestion, Cached: true}, nil
	}

	prompt := fmt.Sprintf(`Given this issue, suggest a practical approach to solve it:

Title: %s

Description: %s

Provide a clear, actionable solution approach in 3-5 bullet points:`, issue.Title, issue.Description)
	system := "You are a helpful technical advisor providing practical solutions to software issues."

	suggestion, err := s.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	if err := s.issues.SetIssueSuggestion(ctx, issueID, suggestion, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.limiter.Increment(ctx, userID); err != nil {
		s.logger.Warn("rate limit increment failed", "user_id", userID, "error", err)
	}
	return &Result{Text: suggestion, Cached: false}, nil
}

var jsonArrayPattern = regexp.MustCompile(`\[.*?\]`)

// parseLabelNames extracts the first JSON array of strings from a
// completion. Anything unparseable yields no names.
func parseLabelNames(completion string) []string {
	match := jsonArrayPattern.FindString(completion)
	if match == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(match), &names); err != nil {
		return nil
	}
	return names
}

// RecommendLabels asks the provider to pick up to 3 of the project's labels
// for the issue and returns their ids. A project with no labels short
// circuits to an empty result without consuming quota.
func (s Service) RecommendLabels(ctx context.Context, userID, issueID string) ([]string, error) {
	issue, err := s.resolver.IssueAccess(ctx, userID, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, userID); err != nil {
		return nil, err
	}
	labels, err := s.projects.ListLabels(ctx, issue.ProjectID)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return []string{}, nil
	}

	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	prompt := fmt.Sprintf(`Based on this issue, recommend up to 3 most relevant labels from the available options:

Title: %s
Description: %s

Available labels: %s

Return ONLY a JSON array of label names, like: ["label1", "label2"]
Do not include any other text.`, issue.Title, issue.Description, strings.Join(names, ", "))
	system := "You are a label recommendation system. Return only valid JSON arrays."

	recommended := []string{}
	completion, err := s.complete(ctx, system, prompt)
	if err == nil {
		picked := parseLabelNames(completion)
		for _, l := range labels {
			for _, name := range picked {
				if l.Name == name {
					recommended = append(recommended, l.ID)
					break
				}
			}
		}
		if len(recommended) > maxLabelSuggestion {
			recommended = recommended[:maxLabelSuggestion]
		}
	} else {
		s.logger.Warn("label recommendation failed", "issue_id", issueID, "error", err)
	}

	if err := s.limiter.Increment(ctx, userID); err != nil {
		s.logger.Warn("rate limit increment failed", "user_id", userID, "error", err)
	}
	return recommended, nil
}

// DetectDuplicates scores a prospective title against the project's most
// recent issues. No provider call is involved, but a served scan still
// counts against the rate limit.
func (s Service) DetectDuplicates(ctx context.Context, userID, projectID, title string) ([]domain.SimilarIssue, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, userID); err != nil {
		return nil, err
	}
	refs, err := s.issues.ListIssueRefs(ctx, projectID, duplicateWindow)
	if err != nil {
		return nil, err
	}
	similar := FindDuplicates(title, refs)
	if err := s.limiter.Increment(ctx, userID); err != nil {
		s.logger.Warn("rate limit increment failed", "user_id", userID, "error", err)
	}
	return similar, nil
}

// SummarizeComments condenses an issue's discussion thread. Requires at
// least 5 comments and reads at most the first 20; thread summaries are
// never cached.
func (s Service) SummarizeComments(ctx context.Context, userID, issueID string) (*Result, error) {
	if _, err := s.resolver.IssueAccess(ctx, userID, issueID); err != nil {
		return nil, err
	}
	if err := s.limiter.Check(ctx, userID); err != nil {
		return nil, err
	}
	count, err := s.comments.CountCommentsByIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if count < minThreadComments {
		return nil, apperr.Validation("At least 5 comments required for summarization")
	}
	comments, err := s.comments.ListCommentsByIssue(ctx, issueID, maxThreadComments, 0)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, c := range comments {
		b.WriteString("- ")
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	prompt := fmt.Sprintf(`Summarize the following discussion comments in 3-5 sentences.
Focus on key points, decisions, and action items:

%s

Summary:`, strings.TrimRight(b.String(), "\n"))
	system := "You are a helpful assistant that summarizes discussion threads, highlighting key decisions and action items."

	summary, err := s.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Increment(ctx, userID); err != nil {
		s.logger.Warn("rate limit increment failed", "user_id", userID, "error", err)
	}
	return &Result{Text: summary, Cached: false}, nil
}
