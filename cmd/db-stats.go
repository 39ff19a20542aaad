package cmd

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display the number of rows stored in every table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close() //nolint: errcheck

		counts, err := db.TableCounts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		tables := lo.Keys(counts)
		slices.Sort(tables)
		width := lo.Max(lo.Map(tables, func(t string, _ int) int { return len(t) }))

		fmt.Printf("Database Statistics (%s):\n", db.Dialect())
		var total int64
		for _, table := range tables {
			fmt.Printf("  %-*s %s\n", width, table, humanize.Comma(counts[table]))
			total += counts[table]
		}
		fmt.Printf("Total rows: %s\n", humanize.Comma(total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
