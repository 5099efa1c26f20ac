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

// PostService coordinates board post workflows.
type PostService struct {
	posts      repository.PostRepository
	dispatcher events.Dispatcher
}

// NewPostService builds the service.
func NewPostService(posts repository.PostRepository, dispatcher events.Dispatcher) *PostService {
	return &PostService{posts: posts, dispatcher: dispatcher}
}

// PostCreateInput describes post creation payload.
type PostCreateInput struct {
	Title   string
	Content string
}

// PostUpdateInput describes post update payload.
type PostUpdateInput struct {
	Title   string
	Content string
}

// PostListInput describes listing parameters.
type PostListInput struct {
	Keyword       string
	SortBy        string
	SortAscending bool
	Page          int
	PageSize      int
}

// CreatePost stores a new post authored by the caller.
func (s *PostService) CreatePost(ctx context.Context, input PostCreateInput, actor *domain.User) (*domain.Post, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Content) == "" {
		return nil, apperrors.NewValidationError("title and content required", nil)
	}

	post := &domain.Post{
		Title:          input.Title,
		Content:        input.Content,
		AuthorID:       actor.ID,
		AuthorUsername: actor.Username,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventPostCreated, actor, events.PostCreatedPayload{
		PostID: post.ID,
		Title:  post.Title,
	})
	return post, nil
}

// UpdatePost modifies a post; only the author may update it.
func (s *PostService) UpdatePost(ctx context.Context, postID string, input PostUpdateInput, actor *domain.User) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.ID {
		return apperrors.NewForbidden("not the author of this post")
	}

	post.Title = input.Title
	post.Content = input.Content
	if err := s.posts.Update(ctx, post); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// DeletePost removes a post; allowed for the author or an admin.
func (s *PostService) DeletePost(ctx context.Context, postID string, actor *domain.User) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.ID && actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("not allowed to delete this post")
	}

	if err := s.posts.Delete(ctx, postID); err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventPostDeleted, actor, events.PostDeletedPayload{PostID: postID})
	return nil
}

// GetPost fetches a single post with its author resolved.
func (s *PostService) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	return s.getPost(ctx, postID)
}

// ListPosts returns one page of posts plus the unpaged total.
func (s *PostService) ListPosts(ctx context.Context, input PostListInput) ([]domain.Post, int64, error) {
	page := input.Page
	if page < 0 {
		page = 0
	}
	size := input.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}

	filter := repository.PostFilter{
		SortBy:        input.SortBy,
		SortAscending: input.SortAscending,
		Limit:         size,
		Offset:        page * size,
	}
	if strings.TrimSpace(input.Keyword) != "" {
		keyword := input.Keyword
		filter.Keyword = &keyword
	}

	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.posts.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return posts, total, nil
}

func (s *PostService) getPost(ctx context.Context, postID string) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("post", map[string]any{"post_id": postID})
		}
		return nil, apperrors.MapError(err)
	}
	return post, nil
}

func (s *PostService) publish(ctx context.Context, eventType events.EventType, actor *domain.User, payload interface{}) {
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
