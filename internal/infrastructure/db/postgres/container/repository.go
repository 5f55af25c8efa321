package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domain "dropshare-api/internal/domain/container"
	"dropshare-api/internal/infrastructure/db/postgres"
)

var ErrPublicIDTaken = errors.New("public id already in use")

type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) domain.Repository {
	return &Repository{db: db}
}

// CreateContainer writes the container and its files in one transaction.
func (r *Repository) CreateContainer(ctx context.Context, req *domain.Container) (*domain.Container, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	var id int64
	if err = tx.QueryRow(
		ctx,
		InsertContainer,
		req.PublicID, req.DisplayName, req.CreatedAt, req.ExpiresAt,
	).Scan(&id); err != nil {
		_ = tx.Rollback(ctx)
		if postgres.IsPgUniqueViolation(err) {
			return nil, ErrPublicIDTaken
		}
		return nil, err
	}

	for _, rec := range req.Files {
		f := toDBFile(id, rec)
		if _, err = tx.Exec(
			ctx,
			InsertFile,
			f.UUID, f.ContainerID, f.Position, f.OriginalName, f.CleanName, f.Extension,
			f.StorageKey, f.URL, f.SizeBytes, f.Category, f.MimeType,
		); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("insert file %d: %w", rec.Position, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	out := *req
	out.ID = domain.ID(id)
	out.Files = append([]domain.FileRecord(nil), req.Files...)

	return &out, nil
}

func (r *Repository) FetchByPublicID(ctx context.Context, publicID domain.PublicID) (*domain.Container, error) {
	return r.fetchOne(ctx, SelectContainerByPublicID, publicID)
}

func (r *Repository) FetchByFileID(ctx context.Context, fileID uuid.UUID) (*domain.Container, error) {
	return r.fetchOne(ctx, SelectContainerByFileID, fileID)
}

func (r *Repository) fetchOne(ctx context.Context, query string, arg any) (*domain.Container, error) {
	c := new(Container)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.ID,
		&c.PublicID,
		&c.DisplayName,
		&c.CreatedAt,
		&c.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	files, err := r.fetchFiles(ctx, []int64{c.ID})
	if err != nil {
		return nil, err
	}

	return fromDBModel(c, files[c.ID]), nil
}

// FetchExpired returns at most limit containers with expires_at < before,
// oldest first.
func (r *Repository) FetchExpired(ctx context.Context, before time.Time, limit int) (domain.Containers, error) {
	rows, err := r.db.Query(ctx, SelectExpiredContainers, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cs Containers
	for rows.Next() {
		c := new(Container)
		if err = rows.Scan(
			&c.ID,
			&c.PublicID,
			&c.DisplayName,
			&c.CreatedAt,
			&c.ExpiresAt,
		); err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	files, err := r.fetchFiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(domain.Containers, len(cs))
	for i, c := range cs {
		out[i] = fromDBModel(c, files[c.ID])
	}

	return out, nil
}

func (r *Repository) fetchFiles(ctx context.Context, containerIDs []int64) (map[int64]Files, error) {
	rows, err := r.db.Query(ctx, SelectFilesByContainerIDs, containerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byContainer := make(map[int64]Files, len(containerIDs))
	for rows.Next() {
		f := new(File)
		if err = rows.Scan(
			&f.ContainerID,
			&f.UUID,
			&f.Position,
			&f.OriginalName,
			&f.CleanName,
			&f.Extension,
			&f.StorageKey,
			&f.URL,
			&f.SizeBytes,
			&f.Category,
			&f.MimeType,
		); err != nil {
			return nil, err
		}
		byContainer[f.ContainerID] = append(byContainer[f.ContainerID], f)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return byContainer, nil
}

// DeleteContainer removes the container row; files follow by cascade.
// Deleting a missing row is not an error.
func (r *Repository) DeleteContainer(ctx context.Context, id domain.ID) (bool, error) {
	tag, err := r.db.Exec(ctx, DeleteContainer, int64(id))
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}
