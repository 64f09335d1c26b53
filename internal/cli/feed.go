package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	devqa "github.com/devqa/devqa.go"
	"github.com/devqa/devqa.go/pkg/feed"
)

type FeedOptions struct {
	*RootOptions
	Search string
	Tag    string
}

func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:          "feed",
		Short:        "Print the first page of the question feed",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "case-insensitive text search over title and body")
	cmd.Flags().StringVarP(&opts.Tag, "tag", "t", "", "only questions with this tag")
	return cmd
}

func runFeed(cmd *cobra.Command, opts *FeedOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log, err := opts.newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	con, err := devqa.Dial(cfg, log, nil)
	if err != nil {
		return err
	}
	o := devqa.OptionsFromConfig(cfg)
	o.Logger = log
	sess := devqa.NewSession(con, o)
	defer sess.Close(cmd.Context())

	ctx := cmd.Context()
	if opts.Tag != "" {
		if err := sess.Feed.SelectTag(ctx, opts.Tag); err != nil {
			return err
		}
	}
	if err := sess.Feed.Search(ctx, opts.Search); err != nil {
		return err
	}
	snap := sess.Feed.Snapshot()
	return write(cmd.OutOrStdout(), opts.Format, snap, func(w io.Writer) error {
		return printFeed(w, snap)
	})
}

func printFeed(w io.Writer, snap feed.Snapshot) error {
	if len(snap.Items) == 0 {
		_, err := fmt.Fprintln(w, "No questions.")
		return err
	}
	for _, q := range snap.Items {
		tags := ""
		if len(q.Tags) > 0 {
			tags = " [" + strings.Join(q.Tags, ", ") + "]"
		}
		if _, err := fmt.Fprintf(w, "%4d  %s%s\n      by %s (level %d) %s\n",
			q.Upvotes, q.Title, tags, q.Author.Name, q.Author.Level, q.CreatedAt.Format("2006-01-02 15:04")); err != nil {
			return err
		}
	}
	if snap.HasMore {
		_, err := fmt.Fprintln(w, "...")
		return err
	}
	return nil
}
