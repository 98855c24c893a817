package repomanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memorelay/internal/server/repositories/memos"
)

func TestNew_Memory(t *testing.T) {
	for _, driver := range []string{"", DriverMemory} {
		m, err := New(context.Background(), Options{Driver: driver})
		require.NoError(t, err)

		assert.NoError(t, m.RunMigrations(context.Background()))
		assert.IsType(t, &memos.InMemoryRepository{}, m.Memos())
		assert.Same(t, m.Memos(), m.Memos())
		assert.NoError(t, m.Close())
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Options{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage driver "mongo"`)
}

func TestNew_S3(t *testing.T) {
	m, err := New(context.Background(), Options{
		Driver: DriverS3,
		S3: memos.S3Options{
			User:         "admin",
			Password:     "secret",
			Bucket:       "memos",
			Region:       "us-east-1",
			BaseEndpoint: "http://127.0.0.1:9000",
		},
	})
	require.NoError(t, err)
	assert.IsType(t, &memos.S3Repository{}, m.Memos())
	assert.NoError(t, m.Close())
}
