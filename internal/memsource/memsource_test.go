package memsource_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/memsource"
)

func TestHandle_RefreshAdvancesAndSticksAtLastSnapshot(t *testing.T) {
	src := &memsource.Source{Jobs: map[int]*memsource.Job{
		7: {
			Meta: domain.Job{ID: 7, Name: "test"},
			Snapshots: []memsource.Snapshot{
				{Trace: "a\n"},
				{Trace: "a\nb\n", Finished: true},
			},
		},
	}}
	ctx := context.Background()

	h, err := src.GetJob(ctx, 7)
	require.NoError(t, err)
	assert.False(t, h.Finished())

	tr, err := h.Trace(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(tr))

	require.NoError(t, h.Refresh(ctx))
	require.NoError(t, h.Refresh(ctx))
	assert.True(t, h.Finished())
	assert.NotNil(t, h.Job().FinishedAt)

	tr, err = h.Trace(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(tr))
}

func TestSource_ListPipelinesHonorsLimitAndCountsCalls(t *testing.T) {
	src := &memsource.Source{Pipelines: map[string][]domain.Pipeline{
		"main": {{ID: 3}, {ID: 2}, {ID: 1}},
	}}

	got, err := src.ListPipelines(context.Background(), "main", 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.Pipeline{{ID: 3}, {ID: 2}}, got)
	assert.Equal(t, 1, src.Calls("ListPipelines"))
	assert.Equal(t, 0, src.Calls("GetPipeline"))
}

func TestSource_UnknownJobIsAnError(t *testing.T) {
	src := &memsource.Source{}
	_, err := src.GetJob(context.Background(), 99)
	assert.Error(t, err)
}
