package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skryldev/audiobatch"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported target formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := audiobatch.Formats()
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					string(info.Format),
					info.Extension,
					strings.Join(info.Encoders, " > "),
					string(info.Artwork),
					yesNo(info.IPod),
				})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"Format", "Extension", "Encoders", "Artwork", "iPod profile"}, rows))
			return err
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
