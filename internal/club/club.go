// Package club implements discussion book clubs: membership, posts, likes
// and comments. Mutating a club is restricted to its owner.
package club

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNotOwner = errors.New("only the club owner may do this")
)

type Club struct {
	ID          string    `json:"clubId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Post struct {
	ID           string    `json:"postId"`
	ClubID       string    `json:"clubId"`
	AuthorID     string    `json:"authorId"`
	Body         string    `json:"body"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"commentId"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Create(ctx context.Context, c *Club) error
	Get(ctx context.Context, clubID string) (*Club, error)
	List(ctx context.Context) ([]Club, error)
	Update(ctx context.Context, actorID string, c *Club) error
	Delete(ctx context.Context, actorID, clubID string) error

	Join(ctx context.Context, clubID, userID string) error
	Leave(ctx context.Context, clubID, userID string) error

	AddPost(ctx context.Context, p *Post) error
	ListPosts(ctx context.Context, clubID string) ([]Post, error)
	LikePost(ctx context.Context, postID, userID string) error
	AddComment(ctx context.Context, c *Comment) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, c *Club) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO clubs (id, name, description, owner_id, created_at)
         VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		c.ID, c.Name, c.Description, c.OwnerID,
	).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("insert club: %w", err)
	}

	// the owner is a member from the start
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO club_members (club_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		c.ID, c.OwnerID,
	); err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	c.MemberCount = 1
	return nil
}

const clubColumns = `c.id, c.name, c.description, c.owner_id,
       (SELECT COUNT(*) FROM club_members m WHERE m.club_id = c.id), c.created_at`

func (r *repo) Get(ctx context.Context, clubID string) (*Club, error) {
	var c Club
	err := r.db.QueryRowContext(ctx,
		`SELECT `+clubColumns+` FROM clubs c WHERE c.id = $1`, clubID,
	).Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.MemberCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select club: %w", err)
	}
	return &c, nil
}

func (r *repo) List(ctx context.Context) ([]Club, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clubColumns+` FROM clubs c ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select clubs: %w", err)
	}
	defer rows.Close()

	var clubs []Club
	for rows.Next() {
		var c Club
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.MemberCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan club: %w", err)
		}
		clubs = append(clubs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return clubs, nil
}

func (r *repo) Update(ctx context.Context, actorID string, c *Club) error {
	if err := r.requireOwner(ctx, c.ID, actorID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE clubs SET name = $1, description = $2 WHERE id = $3`,
		c.Name, c.Description, c.ID,
	); err != nil {
		return fmt.Errorf("update club: %w", err)
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, actorID, clubID string) error {
	if err := r.requireOwner(ctx, clubID, actorID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM clubs WHERE id = $1`, clubID); err != nil {
		return fmt.Errorf("delete club: %w", err)
	}
	return nil
}

func (r *repo) requireOwner(ctx context.Context, clubID, actorID string) error {
	var ownerID string
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM clubs WHERE id = $1`, clubID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select club owner: %w", err)
	}
	if ownerID != actorID {
		return ErrNotOwner
	}
	return nil
}

func (r *repo) Join(ctx context.Context, clubID, userID string) error {
	if _, err := r.Get(ctx, clubID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO club_members (club_id, user_id, joined_at)
         VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`,
		clubID, userID,
	); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (r *repo) Leave(ctx context.Context, clubID, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM club_members WHERE club_id = $1 AND user_id = $2`,
		clubID, userID,
	); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

func (r *repo) AddPost(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := r.db.QueryRowContext(ctx,
		`INSERT INTO club_posts (id, club_id, author_id, body, created_at)
         VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		p.ID, p.ClubID, p.AuthorID, p.Body,
	).Scan(&p.CreatedAt); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *repo) ListPosts(ctx context.Context, clubID string) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT p.id, p.club_id, p.author_id, p.body,
       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id),
       (SELECT COUNT(*) FROM post_comments c WHERE c.post_id = p.id),
       p.created_at
FROM club_posts p WHERE p.club_id = $1 ORDER BY p.created_at DESC`, clubID)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.ClubID, &p.AuthorID, &p.Body, &p.LikeCount, &p.CommentCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return posts, nil
}

// LikePost is idempotent: liking twice leaves a single like.
func (r *repo) LikePost(ctx context.Context, postID, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO post_likes (post_id, user_id, created_at)
         VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`,
		postID, userID,
	); err != nil {
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

func (r *repo) AddComment(ctx context.Context, c *Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := r.db.QueryRowContext(ctx,
		`INSERT INTO post_comments (id, post_id, author_id, body, created_at)
         VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		c.ID, c.PostID, c.AuthorID, c.Body,
	).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}
