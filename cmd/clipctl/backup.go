package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipbox/clipbox/internal/backup"
)

func newExportCommand(rootOpts *rootOptions) *cobra.Command {
	var images bool

	cmd := &cobra.Command{
		Use:   "export [archive.zip]",
		Short: "Write a snapshot archive of the primary store",
		Long: `Write every tag and clip of the primary store to a zip archive of
JSON Lines entries. With --images the image blobs are included too.

Without a path the archive is written under <data-path>/backups.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				path := ""
				if len(args) == 1 {
					path = args[0]
				} else {
					name := fmt.Sprintf("clipbox-%s.zip", time.Now().Format("2006-01-02-150405"))
					path = filepath.Join(s.config().Storage.BasePath, "backups", name)
				}
				res, err := s.exporter().Export(cmd.Context(), path, images)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts.Format, res, func(w io.Writer) {
					fmt.Fprintf(w, "wrote %s (%d tags, %d clips, %d images)\n",
						res.Path, res.Counts.Tags, res.Counts.Clips, res.Counts.Images)
					fmt.Fprintf(w, "sha256 %s\n", res.Checksum)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&images, "images", false, "include image blobs")
	return cmd
}

func newVerifyCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive.zip>",
		Short: "Check a snapshot archive against its manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := backup.Verify(args[0])
			if err != nil {
				return err
			}
			err = output(cmd.OutOrStdout(), rootOpts.Format, v, func(w io.Writer) {
				fmt.Fprintf(w, "tags %d, clips %d, images %d\n", v.Found.Tags, v.Found.Clips, v.Found.Images)
				for _, e := range v.Errors {
					fmt.Fprintf(w, "error: %s\n", e)
				}
			})
			if err != nil {
				return err
			}
			return v.Err()
		},
	}
}
