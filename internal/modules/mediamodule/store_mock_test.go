package mediamodule

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Verifies the candidate query shape without a real database.
func TestStore_VideoCandidates_Query(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "path", "kind"}).
		AddRow("id-1", "/vault/a.mp4", "video").
		AddRow("id-2", "/vault/b.mp4", "video")

	mock.ExpectQuery(`SELECT \* FROM "media_items" WHERE kind = .+`).WillReturnRows(rows)

	store := NewStore(db)
	items, err := store.VideoCandidates(context.Background(), "", 200)
	require.NoError(t, err)

	assert.Len(t, items, 2)
	assert.Equal(t, "id-1", items[0].ID)
	assert.Equal(t, KindVideo, items[0].Kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}
