package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"surveychat/internal/config"
	"surveychat/internal/model"
)

func TestOpenMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store = config.StoreMemory
	ctx := context.Background()

	a, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)

	id, err := a.SurveyRepo.Create(ctx, &model.Survey{Title: "Pulse", CreatedBy: "author_admin"})
	require.NoError(t, err)

	got, err := a.SurveyRepo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pulse", got.Title)

	assert.NoError(t, a.Health(ctx))
	assert.NoError(t, a.Close(ctx))
}
