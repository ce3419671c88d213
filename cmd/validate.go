package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/statement-normalizer/internal/adapter"
	"github.com/ginjaninja78/statement-normalizer/internal/config"
)

// validateCmd checks the configuration without importing anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the main and institution configurations",
	Long: `Load the main configuration and every institution file in the configs
directory, and build each institution's adapter. Nothing is imported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate() error {
	fmt.Println("Main configuration: OK")
	fmt.Printf("  input:   %s\n", mainConfig.InputDir)
	fmt.Printf("  output:  %s (%s)\n", mainConfig.OutputDir, mainConfig.OutputFormat)
	fmt.Printf("  configs: %s\n", mainConfig.ConfigsDir)

	insts, err := loadInstitutions()
	if err != nil {
		return err
	}

	fmt.Println(heading.Render(fmt.Sprintf("\nInstitutions (%d):", len(insts))))
	failed := 0
	for _, inst := range insts {
		if err := checkInstitution(inst); err != nil {
			failed++
			fmt.Printf("  %s %s: %v\n", failMark, describe(inst), err)
			continue
		}
		fmt.Printf("  %s %s\n", okMark, describe(inst))
	}

	if failed > 0 {
		return fmt.Errorf("%d institution configuration(s) are invalid", failed)
	}
	return nil
}

// checkInstitution validates the options and builds the adapter, which also
// compiles the transformation rules.
func checkInstitution(inst *config.Institution) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	_, err := adapter.New(inst, logger)
	return err
}

func describe(inst *config.Institution) string {
	var parts []string
	if inst.Adapter != "" {
		parts = append(parts, "adapter "+inst.Adapter)
	}
	if inst.Path != "" {
		parts = append(parts, inst.Path)
	} else {
		parts = append(parts, "built-in")
	}
	return fmt.Sprintf("%s [%s]", inst.Name, strings.Join(parts, ", "))
}
