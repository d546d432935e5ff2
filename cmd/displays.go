package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/displayhal/composerconf/internal/hal"
)

var displaysCmd = &cobra.Command{
	Use:   "displays",
	Short: "Discover and list displays",
	Long:  `Discover the displays the composition service reports and print their configs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		displays, err := s.Displays(context.Background())
		if err != nil {
			return fmt.Errorf("display discovery failed: %w", err)
		}

		headerStyle := lipgloss.NewStyle().Bold(true)
		t := table.New().
			Headers("DISPLAY", "SIZE", "CONFIG", "VSYNC PERIOD", "GROUP", "ACTIVE").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return lipgloss.NewStyle().PaddingRight(2)
			})

		for _, display := range displays {
			width, height := display.Dimensions()
			active, err := s.ActiveConfig(display.ID())
			if err != nil {
				return err
			}

			configs := display.Configs()
			ids := make([]int, 0, len(configs))
			for id := range configs {
				ids = append(ids, int(id))
			}
			sort.Ints(ids)

			for _, id := range ids {
				dc := configs[hal.ConfigID(id)]
				activeMarker := ""
				if int(active) == id {
					activeMarker = "◀"
				}
				t.Row(
					fmt.Sprintf("%d", display.ID()),
					fmt.Sprintf("%dx%d", width, height),
					fmt.Sprintf("%d", id),
					fmt.Sprintf("%.2f ms", float64(dc.VsyncPeriodNs)/1e6),
					fmt.Sprintf("%d", dc.ConfigGroup),
					activeMarker,
				)
			}
		}

		fmt.Println(t.Render())
		return nil
	},
}
