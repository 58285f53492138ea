package repository

import (
	"context"
	"testing"

	"transcoding_service/internal/transcode/domain"

	"github.com/stretchr/testify/assert"
)

func TestFindByStatusUnknownStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("postgres 未知狀態不查詢", func(t *testing.T) {
		_, err := (&videoRepo{}).FindByStatus(ctx, domain.VideoStatus("archived"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("mongo 未知狀態不查詢", func(t *testing.T) {
		_, err := (&mongoVideoRepo{}).FindByStatus(ctx, domain.VideoStatus(""))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
