package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/goliatone/go-publisher/pkg/storage"
)

func TestFileStorePutGet(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := storage.NewFileStore(fs, "blobs")

	if err := store.Put(ctx, "ab/cdef", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "ab/cdef", []byte("two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := store.Get(ctx, "ab/cdef")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "two" {
		t.Fatalf("expected overwritten content, got %q", got)
	}
	entries, err := afero.ReadDir(fs, "blobs/ab")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "cdef" {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestFileStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(afero.NewMemMapFs(), "blobs")

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, "../escape", []byte("x")); !errors.Is(err, storage.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := store.Put(ctx, " ", []byte("x")); !errors.Is(err, storage.ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestArtifactStoreURL(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	artifacts := storage.NewArtifactStore(storage.NewFileStore(fs, "previews"), "http://localhost:8080/", "previews")

	url, err := artifacts.Write(ctx, "task-1.html", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if url != "http://localhost:8080/previews/task-1.html" {
		t.Fatalf("unexpected url %q", url)
	}
	data, err := afero.ReadFile(fs, "previews/task-1.html")
	if err != nil || string(data) != "<html></html>" {
		t.Fatalf("artifact not written: %q %v", data, err)
	}
}
