// Package repomanager selects and owns the memo storage backend configured
// for the server.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Memos() memos.Repository
	Close() error
}

// Options describes which backend to open and how to reach it.
type Options struct {
	Driver      string
	DatabaseDSN string
	S3          memos.S3Options
}

// New opens the backend named by o.Driver.
func New(ctx context.Context, o Options) (RepositoryManager, error) {
	switch o.Driver {
	case DriverMemory, "":
		return NewMemoryRepositoryManager(), nil
	case DriverPostgres:
		return OpenPostgresRepositoryManager(ctx, o.DatabaseDSN)
	case DriverS3:
		return NewS3RepositoryManager(ctx, o.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", o.Driver)
	}
}

// MemoryRepositoryManager keeps memos in process memory. Nothing survives a
// restart.
type MemoryRepositoryManager struct {
	repo *memos.InMemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{repo: memos.NewInMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Memos() memos.Repository           { return m.repo }
func (m *MemoryRepositoryManager) Close() error                      { return nil }

// S3RepositoryManager stores memos as objects in an S3-compatible bucket.
type S3RepositoryManager struct {
	repo *memos.S3Repository
}

func NewS3RepositoryManager(ctx context.Context, o memos.S3Options) (*S3RepositoryManager, error) {
	repo, err := memos.NewS3Repository(ctx, o)
	if err != nil {
		return nil, err
	}
	return &S3RepositoryManager{repo: repo}, nil
}

// RunMigrations checks that the bucket is reachable; objects need no schema.
func (m *S3RepositoryManager) RunMigrations(ctx context.Context) error {
	return m.repo.Ping(ctx)
}

func (m *S3RepositoryManager) Memos() memos.Repository { return m.repo }
func (m *S3RepositoryManager) Close() error            { return nil }
