package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/points"
)

func NewLevelCommand(rootOpts *RootOptions) *cobra.Command {
	var xpPerLevel int
	cmd := &cobra.Command{
		Use:          "level <points>",
		Short:        "Show the level projection of a point total",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: points %q", constants.ErrInvalidInput, args[0])
			}
			info := points.Level(total, xpPerLevel)
			return write(cmd.OutOrStdout(), rootOpts.Format, info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Level %d  %d/%d XP  (%d to next, %.0f%%)\n",
					info.Level, info.CurrentXP, info.NextLevelXP, info.XPNeeded, info.Progress*100)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&xpPerLevel, "xp-per-level", constants.DefaultXPPerLevel, "points per level")
	return cmd
}
