package di

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/goliatone/go-publisher/internal/logging/gologger"
	"github.com/goliatone/go-publisher/internal/runtimeconfig"
)

func TestGoLoggerProviderSelectedByConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Logging.Provider = "gologger"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	container, err := NewContainer(cfg, WithFilesystem(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	if _, ok := container.loggerProvider.(*gologger.Provider); !ok {
		t.Fatalf("expected go-logger provider, got %T", container.loggerProvider)
	}
}

func TestConsoleProviderIsTheDefault(t *testing.T) {
	container, err := NewContainer(runtimeconfig.DefaultConfig(), WithFilesystem(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	if _, ok := container.loggerProvider.(*gologger.Provider); ok {
		t.Fatal("expected console provider by default")
	}
	if container.LoggerProvider() == nil {
		t.Fatal("expected a logger provider")
	}
}
