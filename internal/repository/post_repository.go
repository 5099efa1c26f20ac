package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/noticeboard/internal/domain"
)

// PostFilter captures listing parameters for the board.
type PostFilter struct {
	Keyword       *string
	SortBy        string
	SortAscending bool
	Limit         int
	Offset        int
}

// PostRepository encapsulates post persistence.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	List(ctx context.Context, filter PostFilter) ([]domain.Post, error)
	Count(ctx context.Context, filter PostFilter) (int64, error)
}

type postRepository struct {
	pool *pgxpool.Pool
}

// NewPostRepository instantiates repository.
func NewPostRepository(pool *pgxpool.Pool) PostRepository {
	return &postRepository{pool: pool}
}

func (r *postRepository) Create(ctx context.Context, post *domain.Post) error {
	const query = `
        INSERT INTO posts (title, content, author_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		post.Title,
		post.Content,
		post.AuthorID,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
}

func (r *postRepository) Update(ctx context.Context, post *domain.Post) error {
	const query = `
        UPDATE posts SET title=$1, content=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, post.Title, post.Content, post.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	const query = `
        SELECT p.id, p.title, p.content, p.author_id, u.username, p.comment_count, p.created_at, p.updated_at
        FROM posts p JOIN users u ON u.id = p.author_id
        WHERE p.id=$1`

	var post domain.Post
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.AuthorID,
		&post.AuthorUsername,
		&post.CommentCount,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]domain.Post, error) {
	base := `SELECT p.id, p.title, p.content, p.author_id, u.username, p.comment_count, p.created_at, p.updated_at
             FROM posts p JOIN users u ON u.id = p.author_id`
	clause, args := keywordClause(filter)

	direction := "DESC"
	if filter.SortAscending {
		direction = "ASC"
	}
	sortColumn := "p.created_at"
	if filter.SortBy == "title" {
		sortColumn = "p.title"
	}

	query := base + clause + fmt.Sprintf(" ORDER BY %s %s", sortColumn, direction)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(
			&post.ID,
			&post.Title,
			&post.Content,
			&post.AuthorID,
			&post.AuthorUsername,
			&post.CommentCount,
			&post.CreatedAt,
			&post.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, post)
	}
	return result, rows.Err()
}

func (r *postRepository) Count(ctx context.Context, filter PostFilter) (int64, error) {
	clause, args := keywordClause(filter)
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+clause, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func keywordClause(filter PostFilter) (string, []any) {
	if filter.Keyword == nil || strings.TrimSpace(*filter.Keyword) == "" {
		return "", nil
	}
	pattern := "%" + strings.TrimSpace(*filter.Keyword) + "%"
	return " WHERE (p.title ILIKE $1 OR p.content ILIKE $1)", []any{pattern}
}
