package main

import (
	"fmt"
	"path/filepath"

	"github.com/goliatone/go-publisher"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type processFlags struct {
	cover   string
	images  []string
	confirm bool
	async   bool
}

func newProcessCmd(global *globalFlags) *cobra.Command {
	flags := &processFlags{}
	cmd := &cobra.Command{
		Use:   "process <markdown-file>",
		Short: "Render a preview and upload preview assets",
		Long: `Process reads the Markdown article, validates its front matter, uploads
the cover and content images and writes the preview page. Images are matched
to Markdown references by file name.

Examples:
  publisher process post.md --cover cover.jpg --image a.png --image b.png
  publisher process post.md --image a.png --confirm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, global, flags, args[0])
		},
	}
	cmd.Flags().StringVar(&flags.cover, "cover", "", "cover image file")
	cmd.Flags().StringArrayVar(&flags.images, "image", nil, "content image file (repeatable)")
	cmd.Flags().BoolVar(&flags.confirm, "confirm", false, "create the platform draft once the preview is ready")
	cmd.Flags().BoolVar(&flags.async, "async", false, "queue the task and print it without waiting")
	cmd.MarkFlagsMutuallyExclusive("confirm", "async")
	return cmd
}

func runProcess(cmd *cobra.Command, global *globalFlags, flags *processFlags, path string) error {
	req, err := readRequest(path, flags)
	if err != nil {
		return err
	}

	module, err := global.loadModule()
	if err != nil {
		return err
	}
	defer module.Close()

	ctx := cmd.Context()
	if flags.async {
		snap, err := module.Submit(ctx, req)
		return writeSnapshot(cmd.OutOrStdout(), snap, err)
	}

	snap, err := module.Process(ctx, req)
	if err != nil || !flags.confirm {
		return writeSnapshot(cmd.OutOrStdout(), snap, err)
	}
	snap, err = module.Confirm(ctx, snap.ID)
	return writeSnapshot(cmd.OutOrStdout(), snap, err)
}

func readRequest(path string, flags *processFlags) (publisher.ProcessRequest, error) {
	markdown, err := afero.ReadFile(inputFS, path)
	if err != nil {
		return publisher.ProcessRequest{}, fmt.Errorf("read markdown: %w", err)
	}
	req := publisher.ProcessRequest{Markdown: markdown}

	if flags.cover != "" {
		cover, err := readImage(flags.cover)
		if err != nil {
			return publisher.ProcessRequest{}, err
		}
		req.Cover = &cover
	}
	for _, name := range flags.images {
		img, err := readImage(name)
		if err != nil {
			return publisher.ProcessRequest{}, err
		}
		req.ContentImages = append(req.ContentImages, img)
	}
	return req, nil
}

func readImage(path string) (publisher.Image, error) {
	data, err := afero.ReadFile(inputFS, path)
	if err != nil {
		return publisher.Image{}, fmt.Errorf("read image %s: %w", path, err)
	}
	return publisher.Image{Name: filepath.Base(path), Data: data}, nil
}
