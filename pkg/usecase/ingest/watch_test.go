package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/usecase/index"
	"github.com/m-mizutani/lectern/pkg/usecase/ingest"
)

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	repo := repository.NewMemory()
	idx := index.New(repo, &fixedEmbedder{})
	uc := ingest.New(idx)

	done := make(chan error, 1)
	go func() {
		done <- uc.Watch(ctx, dir)
	}()

	// Give the watcher a moment to register before the write lands
	time.Sleep(100 * time.Millisecond)
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "mcp.txt"), []byte(courseDocument), 0644))

	// The debounce window delays ingestion; poll until the course appears
	deadline := time.After(10 * time.Second)
	for {
		if _, err := repo.GetCourse(ctx, "Intro to MCP"); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("document was not ingested")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	gt.NoError(t, <-done)
}

func TestWatchIgnoresOtherExtensions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	repo := repository.NewMemory()
	uc := ingest.New(index.New(repo, &fixedEmbedder{}))

	done := make(chan error, 1)
	go func() {
		done <- uc.Watch(ctx, dir)
	}()

	time.Sleep(100 * time.Millisecond)
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte(courseDocument), 0644))

	// Wait out two debounce windows, then confirm nothing was ingested
	time.Sleep(1200 * time.Millisecond)
	_, err := repo.GetCourse(ctx, "Intro to MCP")
	gt.Error(t, err)

	cancel()
	gt.NoError(t, <-done)
}
