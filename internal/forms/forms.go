// Package forms is the owner-scoped forms service the server exposes behind
// the auth gate. Every operation takes the verified identity and only ever
// reads or writes that subject's rows.
package forms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

var (
	ErrTitleRequired = &tokengate.Error{Code: tokengate.CodeInvalidArgument, Reason: "title_required", Message: "Title is required"}
	ErrIDRequired    = &tokengate.Error{Code: tokengate.CodeInvalidArgument, Reason: "form_id_required", Message: "Form ID is required"}
	ErrNotFound      = &tokengate.Error{Code: tokengate.CodeNotFound, Reason: "form_not_found", Message: "Form not found"}
)

const formsSchema = `
CREATE TABLE IF NOT EXISTS forms (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forms_user_created ON forms(user_id, created_at);
`

// timeLayout is fixed width so created_at orders correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Form struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest, ListRequest, GetRequest and DeleteRequest carry the session
// token so they can be passed straight through middleware.Guard.
type CreateRequest struct {
	Token       string `json:"token,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r CreateRequest) GetToken() string { return r.Token }

type ListRequest struct {
	Token string `json:"token,omitempty"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

func (r ListRequest) GetToken() string { return r.Token }

type GetRequest struct {
	Token string `json:"token,omitempty"`
	ID    int64  `json:"id"`
}

func (r GetRequest) GetToken() string { return r.Token }

type DeleteRequest = GetRequest

type FormResponse struct {
	Success bool   `json:"success"`
	Form    Form   `json:"form"`
	Message string `json:"message"`
}

type ListResponse struct {
	Success bool   `json:"success"`
	Forms   []Form `json:"forms"`
	Total   int64  `json:"total"`
	Message string `json:"message"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service stores forms in SQLite.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, now: now}
}

func (s *Service) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, formsSchema); err != nil {
		return fmt.Errorf("creating forms: %w", err)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, id *tokengate.Identity, req CreateRequest) (FormResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return FormResponse{}, ErrTitleRequired
	}

	now := s.now().UTC()
	stamp := now.Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO forms (user_id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id.SubjectID, title, req.Description, stamp, stamp,
	)
	if err != nil {
		return FormResponse{}, internal(fmt.Errorf("inserting form: %w", err))
	}
	formID, err := res.LastInsertId()
	if err != nil {
		return FormResponse{}, internal(err)
	}

	return FormResponse{
		Success: true,
		Form: Form{
			ID:          formID,
			UserID:      id.SubjectID,
			Title:       title,
			Description: req.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		Message: "Form created successfully",
	}, nil
}

// List returns one page of the caller's forms, newest first, with the total
// count across all pages.
func (s *Service) List(ctx context.Context, id *tokengate.Identity, req ListRequest) (ListResponse, error) {
	page, limit := req.Page, req.Limit
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms WHERE user_id = ?`, id.SubjectID).Scan(&total); err != nil {
		return ListResponse{}, internal(fmt.Errorf("counting forms: %w", err))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, created_at, updated_at
		   FROM forms WHERE user_id = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT ? OFFSET ?`,
		id.SubjectID, limit, (page-1)*limit,
	)
	if err != nil {
		return ListResponse{}, internal(fmt.Errorf("listing forms: %w", err))
	}
	defer rows.Close()

	out := make([]Form, 0, limit)
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return ListResponse{}, internal(err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return ListResponse{}, internal(err)
	}

	return ListResponse{Success: true, Forms: out, Total: total, Message: "Forms retrieved successfully"}, nil
}

// Get returns ErrNotFound both for a missing form and for another subject's.
func (s *Service) Get(ctx context.Context, id *tokengate.Identity, req GetRequest) (FormResponse, error) {
	if req.ID == 0 {
		return FormResponse{}, ErrIDRequired
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, created_at, updated_at FROM forms WHERE id = ? AND user_id = ?`,
		req.ID, id.SubjectID,
	)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FormResponse{}, ErrNotFound
	}
	if err != nil {
		return FormResponse{}, internal(err)
	}
	return FormResponse{Success: true, Form: f, Message: "Form retrieved successfully"}, nil
}

func (s *Service) Delete(ctx context.Context, id *tokengate.Identity, req DeleteRequest) (DeleteResponse, error) {
	if req.ID == 0 {
		return DeleteResponse{}, ErrIDRequired
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ? AND user_id = ?`, req.ID, id.SubjectID)
	if err != nil {
		return DeleteResponse{}, internal(fmt.Errorf("deleting form: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return DeleteResponse{}, internal(err)
	}
	if n == 0 {
		return DeleteResponse{}, ErrNotFound
	}
	return DeleteResponse{Success: true, Message: "Form deleted successfully"}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanForm(row scanner) (Form, error) {
	var (
		f                    Form
		createdAt, updatedAt string
	)
	if err := row.Scan(&f.ID, &f.UserID, &f.Title, &f.Description, &createdAt, &updatedAt); err != nil {
		return Form{}, err
	}
	var err error
	if f.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Form{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if f.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return Form{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return f, nil
}

func internal(err error) error {
	return &tokengate.Error{
		Code:    tokengate.CodeInternal,
		Reason:  tokengate.ReasonInternal,
		Message: tokengate.ErrInternal.Message,
		Err:     err,
	}
}
