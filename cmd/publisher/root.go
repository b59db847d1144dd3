package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-publisher"
	"github.com/goliatone/go-publisher/internal/di"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	// moduleBuilder and inputFS are replaced in tests.
	moduleBuilder = func(cfg publisher.Config, opts ...di.Option) (*publisher.Module, error) {
		return publisher.New(cfg, opts...)
	}
	inputFS afero.Fs = afero.NewOsFs()
	environ          = os.Environ
)

type globalFlags struct {
	overrides []string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "publisher",
		Short: "Publish Markdown articles as platform drafts",
		Long: `publisher extracts front matter, renders a preview and uploads the
article images, then creates a draft on the publishing platform once the
preview is confirmed.

Configuration comes from PUBLISHER_* environment variables, e.g.
PUBLISHER_PLATFORM_PROVIDER=wechat, and from --set key=value overrides.

Usage:
  publisher process <markdown-file> --cover cover.jpg --image a.png [--confirm]
  publisher confirm <task-id>
  publisher status <task-id>`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringArrayVar(&flags.overrides, "set", nil, "configuration override as key=value, e.g. storage.provider=bun")

	root.AddCommand(newProcessCmd(flags), newConfirmCmd(flags), newStatusCmd(flags))
	return root
}

func (f *globalFlags) loadModule() (*publisher.Module, error) {
	overrides, err := parseOverrides(f.overrides)
	if err != nil {
		return nil, err
	}
	cfg, err := publisher.LoadConfig(publisher.LoadOptions{
		Overrides: overrides,
		Environ:   environ,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	module, err := moduleBuilder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build publisher: %w", err)
	}
	return module, nil
}

func parseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// writeSnapshot prints snap as indented JSON. A failed phase still prints the
// stored task before the error is returned.
func writeSnapshot(w io.Writer, snap publisher.Snapshot, runErr error) error {
	if snap.ID != "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
	}
	return runErr
}
