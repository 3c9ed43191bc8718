package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewResourceCountRepository(db)

	mock.ExpectQuery("SELECT COUNT(.+) FROM projects").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT(.+) FROM users").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	projects, err := repo.CountProjects(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), projects)

	users, err := repo.CountUsers(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), users)

	assert.NoError(t, mock.ExpectationsWereMet())
}
