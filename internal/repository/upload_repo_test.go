package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/models"
)

func TestUploadRepositoryFindByChecksumIsScopedToUser(t *testing.T) {
	repo := NewUploadRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.UploadRecord{UserID: 1, FileName: "a.png", URL: "https://cdn/a.png", MimeType: "image/png", SizeBytes: 10, Checksum: "abc"}))

	found, err := repo.FindByChecksum(ctx, 1, "abc")
	require.NoError(t, err)
	require.Equal(t, "https://cdn/a.png", found.URL)

	_, err = repo.FindByChecksum(ctx, 2, "abc")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
