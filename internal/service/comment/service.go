package comment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/mailer"
	"github.com/jiralite/api/internal/repository"
	"github.com/jiralite/api/internal/service/access"
	"github.com/jiralite/api/internal/service/notification"
	"github.com/jiralite/api/pkg/config"
)

// Service handles issue comments.
type Service struct {
	comments repository.CommentRepository
	users    repository.UserRepository
	resolver access.Resolver
	notify   notification.Service
	mail     mailer.Sender
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New constructs a Service.
func New(comments repository.CommentRepository, users repository.UserRepository, resolver access.Resolver, notify notification.Service, mail mailer.Sender, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{comments: comments, users: users, resolver: resolver, notify: notify, mail: mail, logger: logger, cfg: cfg}
}

// Create adds a comment and notifies the issue owner. Commenting on your
// own issue is silent.
func (s Service) Create(ctx context.Context, userID, issueID, content string) (*domain.Comment, error) {
	issue, err := s.resolver.IssueAccess(ctx, userID, issueID)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, apperr.Validation("comment content is required")
	}
	now := time.Now().UTC()
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		IssueID:   issueID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	if issue.OwnerID != userID {
		s.notifyOwner(ctx, issue, userID, content)
	}
	return comment, nil
}

// notifyOwner tells the issue owner about a new comment, in-app and by email.
// Delivery failures only warn.
func (s Service) notifyOwner(ctx context.Context, issue *domain.Issue, commenterID, content string) {
	err := s.notify.Notify(ctx, issue.OwnerID, notification.TypeComment,
		"New comment on your issue",
		fmt.Sprintf("Someone commented on %q", issue.Title),
		fmt.Sprintf("/projects/%s/issues/%s", issue.ProjectID, issue.ID))
	if err != nil {
		s.logger.Warn("comment notification failed", "issue_id", issue.ID, "error", err)
	}
	owner, err := s.users.GetUserByID(ctx, issue.OwnerID)
	if err != nil {
		s.logger.Warn("comment email skipped", "issue_id", issue.ID, "error", err)
		return
	}
	commenterName := "A teammate"
	if commenter, err := s.users.GetUserByID(ctx, commenterID); err == nil {
		commenterName = commenter.Name
	}
	link := fmt.Sprintf("%s/projects/%s/issues/%s", s.cfg.FrontendBaseURL, issue.ProjectID, issue.ID)
	subject, body := mailer.CommentNotificationBody(owner.Name, commenterName, issue.Title, content, link)
	if err := s.mail.Send(owner.Email, subject, body); err != nil {
		s.logger.Warn("comment email failed", "issue_id", issue.ID, "error", err)
	}
}

// List returns a page of an issue's comments, oldest first.
func (s Service) List(ctx context.Context, userID, issueID string, limit, offset int) ([]domain.Comment, error) {
	if _, err := s.resolver.IssueAccess(ctx, userID, issueID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.comments.ListCommentsByIssue(ctx, issueID, limit, offset)
}

// load fetches a comment while verifying the caller can see its issue.
func (s Service) load(ctx context.Context, userID, commentID string) (*domain.Comment, error) {
	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("comment not found")
		}
		return nil, err
	}
	if _, err := s.resolver.IssueAccess(ctx, userID, comment.IssueID); err != nil {
		return nil, err
	}
	return comment, nil
}

// Update edits a comment. Author only.
func (s Service) Update(ctx context.Context, userID, commentID, content string) (*domain.Comment, error) {
	comment, err := s.load(ctx, userID, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, apperr.Forbidden("only the author can edit a comment")
	}
	if content == "" {
		return nil, apperr.Validation("comment content is required")
	}
	updated, err := s.comments.UpdateComment(ctx, commentID, content)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("comment not found")
		}
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes a comment. Author only.
func (s Service) Delete(ctx context.Context, userID, commentID string) error {
	comment, err := s.load(ctx, userID, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return apperr.Forbidden("only the author can delete a comment")
	}
	if err := s.comments.SoftDeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("comment not found")
		}
		return err
	}
	return nil
}
