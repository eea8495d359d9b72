package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rmorelos/reconbank/internal/core/classify"
	"github.com/rmorelos/reconbank/internal/core/domain"
	"github.com/rmorelos/reconbank/internal/sidechannel"
)

var classifyCmd = &cobra.Command{
	Use:   "classify STATEMENT",
	Short: "Preview how a statement would be classified",
	Long: `Classify parses a statement workbook, stamps every line with its
movement family and prints the result. Nothing touches the database, so
this is safe to run against any file at any time.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassifyPreview,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassifyPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := cfg.Registry()

	lines, warnings, err := sidechannel.ReadStatement(args[0], reg)
	if err != nil {
		return err
	}
	classifier, err := classify.NewDefault(reg)
	if err != nil {
		return err
	}
	classifier.Apply(lines)

	fmt.Printf("%-10s  %-14s  %-3s  %12s  %-20s  %s\n",
		"DATE", "ACCOUNT", "DIR", "AMOUNT", "KIND", "DESCRIPTION")
	counts := make(map[domain.ProcessKind]int, len(lines))
	for i := range lines {
		m := &lines[i]
		counts[m.Kind]++
		fmt.Printf("%-10s  %-14s  %-3s  %12s  %-20s  %s\n",
			m.Date.Format(dateLayout), m.Account, m.Direction.String(),
			m.Amount.StringFixed(2), string(m.Kind), m.Description)
	}

	kinds := make([]domain.ProcessKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	fmt.Printf("\n%d line(s)\n", len(lines))
	for _, k := range kinds {
		fmt.Printf("  %-20s %d\n", string(k), counts[k])
	}
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
