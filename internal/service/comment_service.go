package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/noticeboard/internal/domain"
	"github.com/spec-kit/noticeboard/internal/events"
	"github.com/spec-kit/noticeboard/internal/repository"
	apperrors "github.com/spec-kit/noticeboard/pkg/util"
)

// CommentService coordinates comment workflows.
type CommentService struct {
	comments   repository.CommentRepository
	posts      repository.PostRepository
	dispatcher events.Dispatcher
}

// NewCommentService builds the service.
func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, dispatcher events.Dispatcher) *CommentService {
	return &CommentService{comments: comments, posts: posts, dispatcher: dispatcher}
}

// AddComment appends a comment to an existing post.
func (s *CommentService) AddComment(ctx context.Context, postID, content string, actor *domain.User) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}

	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("post", map[string]any{"post_id": postID})
		}
		return nil, apperrors.MapError(err)
	}

	comment := &domain.Comment{
		PostID:         postID,
		AuthorID:       actor.ID,
		AuthorUsername: actor.Username,
		Content:        content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventCommentAdded, actor, events.CommentAddedPayload{
		PostID:         postID,
		CommentID:      comment.ID,
		ContentPreview: preview(content),
	})
	return comment, nil
}

// UpdateComment modifies a comment; only the author may update it.
func (s *CommentService) UpdateComment(ctx context.Context, commentID, content string, actor *domain.User) error {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.ID {
		return apperrors.NewForbidden("not the author of this comment")
	}

	comment.Content = content
	if err := s.comments.Update(ctx, comment); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// DeleteComment removes a comment; allowed for the author or an admin.
func (s *CommentService) DeleteComment(ctx context.Context, commentID string, actor *domain.User) error {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.ID && actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("not allowed to delete this comment")
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventCommentDeleted, actor, events.CommentDeletedPayload{
		PostID:    comment.PostID,
		CommentID: commentID,
	})
	return nil
}

// ListByPost returns one page of a post's comments, newest first.
func (s *CommentService) ListByPost(ctx context.Context, postID string, page, size int) ([]domain.Comment, int64, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 10
	}

	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, apperrors.NewNotFound("post", map[string]any{"post_id": postID})
		}
		return nil, 0, apperrors.MapError(err)
	}

	comments, err := s.comments.ListByPost(ctx, postID, size, page*size)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.comments.CountByPost(ctx, postID)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return comments, total, nil
}

func (s *CommentService) getComment(ctx context.Context, commentID string) (*domain.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

func (s *CommentService) publish(ctx context.Context, eventType events.EventType, actor *domain.User, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Actor: events.Actor{
			UserID:   actor.ID,
			Username: actor.Username,
			Role:     actor.Role,
		},
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func preview(content string) string {
	const max = 80
	if len(content) <= max {
		return content
	}
	return content[:max]
}
