package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/noticeboard/internal/api/dto"
	"github.com/spec-kit/noticeboard/internal/auth"
	"github.com/spec-kit/noticeboard/internal/domain"
	"github.com/spec-kit/noticeboard/internal/service"
	apperrors "github.com/spec-kit/noticeboard/pkg/util"
)

// PostsHandler exposes board post endpoints.
type PostsHandler struct {
	posts    *service.PostService
	comments *service.CommentService
}

// NewPostsHandler constructs handler.
func NewPostsHandler(postService *service.PostService, commentService *service.CommentService) *PostsHandler {
	return &PostsHandler{posts: postService, comments: commentService}
}

// Create handles POST /boards.
func (h *PostsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	post, err := h.posts.CreatePost(c.Context(), service.PostCreateInput{
		Title:   req.Title,
		Content: req.Content,
	}, principal.User)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": toPostDetail(post),
	})
}

// Update handles PUT /boards/:postId.
func (h *PostsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("title and content required", nil)
	}

	if err := h.posts.UpdatePost(c.Context(), c.Params("postId"), service.PostUpdateInput{
		Title:   req.Title,
		Content: req.Content,
	}, principal.User); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"updated": true}})
}

// Delete handles DELETE /boards/:postId.
func (h *PostsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.posts.DeletePost(c.Context(), c.Params("postId"), principal.User); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": true}})
}

// Get handles GET /boards/:postId.
func (h *PostsHandler) Get(c *fiber.Ctx) error {
	post, err := h.posts.GetPost(c.Context(), c.Params("postId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": toPostDetail(post)})
}

// List handles GET /boards with paging, sorting and keyword search.
func (h *PostsHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", 10)

	posts, total, err := h.posts.ListPosts(c.Context(), service.PostListInput{
		Keyword:       c.Query("keyword"),
		SortBy:        c.Query("sortBy", "createDate"),
		SortAscending: strings.EqualFold(c.Query("direction", "desc"), "asc"),
		Page:          page,
		PageSize:      size,
	})
	if err != nil {
		return err
	}

	summaries := make([]dto.PostSummary, 0, len(posts))
	for _, post := range posts {
		summaries = append(summaries, dto.PostSummary{
			ID:           post.ID,
			Title:        post.Title,
			CommentCount: post.CommentCount,
			CreatedAt:    post.CreatedAt,
		})
	}

	return c.JSON(dto.PageResponse{
		Items:      summaries,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
	})
}

// ListComments handles GET /boards/:postId/comments.
func (h *PostsHandler) ListComments(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", 10)

	comments, total, err := h.comments.ListByPost(c.Context(), c.Params("postId"), page, size)
	if err != nil {
		return err
	}

	items := make([]dto.CommentResponse, 0, len(comments))
	for _, comment := range comments {
		items = append(items, dto.CommentResponse{
			ID:        comment.ID,
			Content:   comment.Content,
			Author:    comment.AuthorUsername,
			CreatedAt: comment.CreatedAt,
		})
	}

	return c.JSON(dto.PageResponse{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
	})
}

func toPostDetail(post *domain.Post) dto.PostDetailResponse {
	return dto.PostDetailResponse{
		ID:           post.ID,
		Title:        post.Title,
		Content:      post.Content,
		Author:       post.AuthorUsername,
		CommentCount: post.CommentCount,
		CreatedAt:    post.CreatedAt,
		UpdatedAt:    post.UpdatedAt,
	}
}
