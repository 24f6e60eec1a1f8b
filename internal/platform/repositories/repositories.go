package repositories

import (
	"context"
	"database/sql"
	"time"

	"clawqa/internal/platform/models"

	"github.com/google/uuid"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "usr_" + uuid.New().String()
	}
	if user.Role == "" {
		user.Role = "agent-owner"
	}
	user.CreatedAt = time.Now().Unix()

	query := `INSERT INTO users (id, email, name, role, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Name, user.Role, user.CreatedAt)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE id = ?`
	var u models.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = "prj_" + uuid.New().String()
	}
	project.CreatedAt = time.Now().Unix()

	query := `INSERT INTO projects (id, owner_id, name, slug, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, project.ID, project.OwnerID, project.Name, project.Slug, project.CreatedAt)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT id, owner_id, name, slug, created_at FROM projects WHERE id = ?`
	var p models.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Slug, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

type CycleRepository struct {
	db *sql.DB
}

func NewCycleRepository(db *sql.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

func (r *CycleRepository) Create(ctx context.Context, cycle *models.TestCycle) error {
	if cycle.ID == "" {
		cycle.ID = "cyc_" + uuid.New().String()
	}
	if cycle.Status == "" {
		cycle.Status = models.CycleStatusOpen
	}
	now := time.Now().Unix()
	cycle.CreatedAt = now
	cycle.UpdatedAt = now

	query := `INSERT INTO test_cycles (id, project_id, title, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, cycle.ID, cycle.ProjectID, cycle.Title, cycle.Status, cycle.CreatedAt, cycle.UpdatedAt)
	return err
}

func (r *CycleRepository) GetByID(ctx context.Context, id string) (*models.TestCycle, error) {
	query := `SELECT id, project_id, title, status, created_at, updated_at FROM test_cycles WHERE id = ?`
	var c models.TestCycle
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.ProjectID, &c.Title, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetProjectID resolves the project a cycle belongs to.
func (r *CycleRepository) GetProjectID(ctx context.Context, cycleID string) (string, error) {
	var projectID string
	err := r.db.QueryRowContext(ctx, `SELECT project_id FROM test_cycles WHERE id = ?`, cycleID).Scan(&projectID)
	if err != nil {
		return "", notFound(err)
	}
	return projectID, nil
}

func (r *CycleRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE test_cycles SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
