package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipbox/clipbox/internal/capture"
	"github.com/clipbox/clipbox/internal/service"
)

func newCaptureCommand(rootOpts *rootOptions) *cobra.Command {
	var (
		description string
		tags        []string
		hidden      bool
		url         string
	)

	cmd := &cobra.Command{
		Use:   "capture <image files...>",
		Short: "Stage a clip made of the given images",
		Long: `Stage a clip into the staging area, the way the share extension does.

The clip reaches the primary store on the next persist pass. Tag names
that do not exist yet are created as local tags.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := capture.Request{Hidden: hidden, TagNames: tags}
			if description != "" {
				req.Description = &description
			}
			for i, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				img := capture.Image{FileName: filepath.Base(path), Data: data}
				if i == 0 && url != "" {
					img.URL = &url
				}
				req.Images = append(req.Images, img)
			}

			return withCaptureSession(cmd, rootOpts, func(s *session) error {
				recipe, err := s.capturer().Capture(cmd.Context(), req)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts.Format, recipe, func(w io.Writer) {
					fmt.Fprintf(w, "staged clip %s (%d images, %d tags)\n", recipe.ID, len(recipe.Items), len(recipe.TagIDs))
				})
			})
		},
	}

	cmd.Flags().StringVar(&description, "desc", "", "clip description")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag name (repeatable)")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "hide the clip")
	cmd.Flags().StringVar(&url, "url", "", "source URL of the first image")
	return cmd
}

func newTagCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <name>",
		Short: "Create a local tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCaptureSession(cmd, rootOpts, func(s *session) error {
				tag, err := s.capturer().CreateTag(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts.Format, tag, func(w io.Writer) {
					state := "synced"
					if tag.IsDirty {
						state = "local"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", tag.ID, tag.Name, state)
				})
			})
		},
	}
}

func newPersistCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "persist",
		Short: "Move staged clips into the primary store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				outcome := s.coordinator().Persister().Persist(cmd.Context(), service.TriggerCLI)
				err := output(cmd.OutOrStdout(), rootOpts.Format, outcome.Result, func(w io.Writer) {
					fmt.Fprintf(w, "migrated %d clips, flushed %d tags\n",
						len(outcome.Result.Migrated), len(outcome.Result.FlushedTags))
					for _, f := range outcome.Result.Failed {
						fmt.Fprintf(w, "failed %s: %s\n", f.ClipID, f.Reason)
					}
				})
				if err != nil {
					return err
				}
				if outcome.Err != nil {
					return outcome.Err
				}
				if !outcome.OK() {
					return errors.New("some clips could not be migrated")
				}
				return nil
			})
		},
	}
}

func newReconcileCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Bring the reference store in line with the primary store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				report, err := s.coordinator().Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts.Format, report, func(w io.Writer) {
					fmt.Fprintf(w, "created %d, updated %d, deleted %d, skipped %d dirty\n",
						report.Created, report.Updated, report.Deleted, report.Skipped)
				})
			})
		},
	}
}

func newStatusCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts of every store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				status, err := s.coordinator().Status(cmd.Context())
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts.Format, status, func(w io.Writer) {
					fmt.Fprintf(w, "tags:           %d\n", status.Tags)
					fmt.Fprintf(w, "clips:          %d\n", status.Clips)
					fmt.Fprintf(w, "reference tags: %d (%d local)\n", status.ReferenceTags, status.DirtyTags)
					fmt.Fprintf(w, "staged clips:   %d\n", status.StagedClips)
				})
			})
		},
	}
}

func newSearchCommand(rootOpts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <terms...>",
		Short: "Search clips by description, tag or source URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				ids, err := s.search().Search(cmd.Context(), strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts.Format, ids, func(w io.Writer) {
					for _, id := range ids {
						fmt.Fprintln(w, id)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}
