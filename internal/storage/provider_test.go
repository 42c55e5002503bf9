package storage_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/teams-titles-scraper/internal/export"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage/memory"
)

func TestObjectPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "runs/abc/uf_jobs_full.csv", storage.ObjectPath("/runs/", "abc", "uf_jobs_full.csv"))
	assert.Equal(t, "abc/a.xlsx", storage.ObjectPath("", "abc", "a.xlsx"))
	assert.Equal(t, "a.xlsx", storage.ObjectPath("", "", "a.xlsx"))
}

func TestPutFiles(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	files := []export.File{
		{Name: "uf_job_single.xlsx", ContentType: export.ContentTypeXLSX, Data: []byte("x")},
		{Name: "uf_job_single.csv", ContentType: export.ContentTypeCSV, Data: []byte("c")},
	}
	uris, err := storage.PutFiles(context.Background(), store, "out", "run-1", files)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"uf_job_single.xlsx": "memory://out/run-1/uf_job_single.xlsx",
		"uf_job_single.csv":  "memory://out/run-1/uf_job_single.csv",
	}, uris)

	data, ok := store.Get("out/run-1/uf_job_single.csv")
	require.True(t, ok)
	assert.Equal(t, "c", string(data))
}

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestPutFilesStopsOnError(t *testing.T) {
	t.Parallel()

	_, err := storage.PutFiles(context.Background(), failingStore{}, "", "r", []export.File{{Name: "a"}})
	require.ErrorContains(t, err, "disk full")
}
