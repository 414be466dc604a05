package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository/memory"
	"github.com/jiralite/api/internal/service/access"
)

type stubGenerator struct {
	calls int
	text  string
	err   error
}

func (g *stubGenerator) Complete(_ context.Context, _, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

type aiFixture struct {
	repo    *memory.Repository
	gen     *stubGenerator
	svc     Service
	userID  string
	project string
	issue   string
}

// newAIFixture seeds a team with one member, one project and one issue whose
// description clears the 10 character minimum.
func newAIFixture(t *testing.T) *aiFixture {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	userID := "user-1"
	teamID := "team-1"
	if err := repo.CreateTeam(ctx, &domain.Team{ID: teamID, Name: "core", OwnerID: userID}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	if err := repo.AddMember(ctx, &domain.TeamMember{ID: "m-1", TeamID: teamID, UserID: userID, Role: domain.RoleOwner}); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	if err := repo.CreateProject(ctx, &domain.Project{ID: "proj-1", TeamID: teamID, Name: "api", OwnerID: userID}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if err := repo.CreateIssue(ctx, &domain.Issue{
		ID:          "issue-1",
		ProjectID:   "proj-1",
		OwnerID:     userID,
		Title:       "Fix login button",
		Description: "The login button does nothing when clicked on mobile.",
		Status:      domain.StatusBacklog,
		Priority:    domain.PriorityMedium,
	}); err != nil {
		t.Fatalf("seed issue: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := &stubGenerator{text: "Generated text."}
	limiter := Limiter{repo: repo, now: func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 15, 0, time.UTC)
	}}
	resolver := access.New(repo, repo, repo, logger)
	return &aiFixture{
		repo:    repo,
		gen:     gen,
		svc:     New(repo, repo, repo, resolver, limiter, gen, logger),
		userID:  userID,
		project: "proj-1",
		issue:   "issue-1",
	}
}

func (f *aiFixture) minuteCount() int {
	total := 0
	for key, count := range f.repo.RateWindows {
		if strings.Contains(key, "|"+domain.WindowMinute+"|") {
			total += count
		}
	}
	return total
}

func TestIssueSummaryGeneratesThenServesCache(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	first, err := f.svc.IssueSummary(ctx, f.userID, f.issue)
	if err != nil {
		t.Fatalf("first summary: %v", err)
	}
	if first.Cached {
		t.Fatal("first summary should not be cached")
	}
	if first.Text != "Generated text." {
		t.Fatalf("unexpected text %q", first.Text)
	}
	if f.gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", f.gen.calls)
	}
	if f.minuteCount() != 1 {
		t.Fatalf("minute window = %d, want 1", f.minuteCount())
	}

	second, err := f.svc.IssueSummary(ctx, f.userID, f.issue)
	if err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if !second.Cached {
		t.Fatal("second summary should be cached")
	}
	if f.gen.calls != 1 {
		t.Fatalf("cache hit reached the provider, calls = %d", f.gen.calls)
	}
	if f.minuteCount() != 1 {
		t.Fatalf("cache hit consumed quota, minute window = %d", f.minuteCount())
	}
}

func TestIssueSummaryRejectsShortDescription(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	issue, _ := f.repo.GetIssueByID(ctx, f.issue)
	issue.Description = "0123456789" // exactly 10, not more than
	if err := f.repo.UpdateIssue(ctx, issue); err != nil {
		t.Fatalf("update issue: %v", err)
	}

	_, err := f.svc.IssueSummary(ctx, f.userID, f.issue)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator should not run, calls = %d", f.gen.calls)
	}
	if f.minuteCount() != 0 {
		t.Fatalf("rejected request consumed quota, minute window = %d", f.minuteCount())
	}
}

func TestIssueSummaryCountsRunesNotBytes(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	issue, _ := f.repo.GetIssueByID(ctx, f.issue)
	issue.Description = "ééééééééé§" // 10 runes, 20 bytes
	if err := f.repo.UpdateIssue(ctx, issue); err != nil {
		t.Fatalf("update issue: %v", err)
	}

	_, err := f.svc.IssueSummary(ctx, f.userID, f.issue)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	issue, _ = f.repo.GetIssueByID(ctx, f.issue)
	issue.Description = "ééééééééé§!" // 11 runes clears the minimum
	if err := f.repo.UpdateIssue(ctx, issue); err != nil {
		t.Fatalf("update issue: %v", err)
	}
	if _, err := f.svc.IssueSummary(ctx, f.userID, f.issue); err != nil {
		t.Fatalf("11 rune description rejected: %v", err)
	}
}

func TestIssueSummaryMasksForeignIssues(t *testing.T) {
	f := newAIFixture(t)

	_, err := f.svc.IssueSummary(context.Background(), "outsider", f.issue)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator should not run, calls = %d", f.gen.calls)
	}
}

func TestIssueSummaryRateLimited(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	for i := 0; i < maxPerMinute; i++ {
		if err := f.svc.limiter.Increment(ctx, f.userID); err != nil {
			t.Fatalf("preseed increment: %v", err)
		}
	}

	_, err := f.svc.IssueSummary(ctx, f.userID, f.issue)
	if !apperr.IsKind(err, apperr.KindRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator should not run, calls = %d", f.gen.calls)
	}
}

func TestIssueSuggestionCachesIndependently(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	if _, err := f.svc.IssueSummary(ctx, f.userID, f.issue); err != nil {
		t.Fatalf("summary: %v", err)
	}
	got, err := f.svc.IssueSuggestion(ctx, f.userID, f.issue)
	if err != nil {
		t.Fatalf("suggestion: %v", err)
	}
	if got.Cached {
		t.Fatal("summary cache must not satisfy suggestion requests")
	}
	if f.gen.calls != 2 {
		t.Fatalf("generator calls = %d, want 2", f.gen.calls)
	}
}

func TestRecommendLabelsEmptyProjectShortCircuits(t *testing.T) {
	f := newAIFixture(t)

	got, err := f.svc.RecommendLabels(context.Background(), f.userID, f.issue)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no labels, got %v", got)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator should not run without labels, calls = %d", f.gen.calls)
	}
	if f.minuteCount() != 0 {
		t.Fatalf("short circuit consumed quota, minute window = %d", f.minuteCount())
	}
}

func TestRecommendLabelsMapsNamesToIDs(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	seeded := time.Now()
	for _, l := range []domain.Label{
		{ID: "l-bug", ProjectID: f.project, Name: "bug", CreatedAt: seeded},
		{ID: "l-feat", ProjectID: f.project, Name: "feature", CreatedAt: seeded.Add(time.Second)},
		{ID: "l-docs", ProjectID: f.project, Name: "docs", CreatedAt: seeded.Add(2 * time.Second)},
	} {
		label := l
		if err := f.repo.CreateLabel(ctx, &label); err != nil {
			t.Fatalf("seed label: %v", err)
		}
	}
	f.gen.text = `Here you go: ["bug", "docs", "unknown"]`

	got, err := f.svc.RecommendLabels(ctx, f.userID, f.issue)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != 2 || got[0] != "l-bug" || got[1] != "l-docs" {
		t.Fatalf("unexpected label ids %v", got)
	}
	if f.minuteCount() != 1 {
		t.Fatalf("minute window = %d, want 1", f.minuteCount())
	}
}

func TestRecommendLabelsSwallowsProviderFailure(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	if err := f.repo.CreateLabel(ctx, &domain.Label{ID: "l-bug", ProjectID: f.project, Name: "bug"}); err != nil {
		t.Fatalf("seed label: %v", err)
	}
	f.gen.err = errors.New("provider down")

	got, err := f.svc.RecommendLabels(ctx, f.userID, f.issue)
	if err != nil {
		t.Fatalf("provider failure must not surface, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty recommendation, got %v", got)
	}
	if f.minuteCount() != 1 {
		t.Fatalf("failed attempt should still count, minute window = %d", f.minuteCount())
	}
}

func TestDetectDuplicatesConsumesQuota(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	got, err := f.svc.DetectDuplicates(ctx, f.userID, f.project, "Fix login btn")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(got) != 1 || got[0].ID != f.issue {
		t.Fatalf("expected the seeded issue as duplicate, got %v", got)
	}
	if f.gen.calls != 0 {
		t.Fatalf("duplicate detection must not call the provider, calls = %d", f.gen.calls)
	}
	if f.minuteCount() != 1 {
		t.Fatalf("minute window = %d, want 1", f.minuteCount())
	}
}

func TestSummarizeCommentsRequiresFive(t *testing.T) {
	f := newAIFixture(t)
	ctx := context.Background()

	for i := 0; i < minThreadComments-1; i++ {
		c := domain.Comment{ID: "c-" + string(rune('a'+i)), IssueID: f.issue, UserID: f.userID, Content: "looks flaky"}
		if err := f.repo.CreateComment(ctx, &c); err != nil {
			t.Fatalf("seed comment: %v", err)
		}
	}

	_, err := f.svc.SummarizeComments(ctx, f.userID, f.issue)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := f.repo.CreateComment(ctx, &domain.Comment{ID: "c-last", IssueID: f.issue, UserID: f.userID, Content: "agreed"}); err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	got, err := f.svc.SummarizeComments(ctx, f.userID, f.issue)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got.Cached {
		t.Fatal("thread summaries are never cached")
	}
	if f.minuteCount() != 1 {
		t.Fatalf("minute window = %d, want 1", f.minuteCount())
	}
}
