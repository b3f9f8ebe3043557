package cli

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stagewright/internal/config"
)

//go:embed assets/stagewright.yaml
var starterConfig string

//go:embed assets/accounts.yaml
var starterAccounts string

//go:embed assets/example.yaml
var starterScenario string

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write starter config, accounts and an example scenario",
	Long: "Creates stagewright.yaml, accounts.yaml and scenarios/example.yaml in\n" +
		"the current directory. Existing files are left alone unless --force.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	files := []struct {
		path    string
		content string
	}{
		{config.DefaultPath, starterConfig},
		{"accounts.yaml", starterAccounts},
		{filepath.Join("scenarios", "example.yaml"), starterScenario},
	}

	var created []string
	for _, f := range files {
		wrote, err := writeIfMissing(f.path, f.content)
		if err != nil {
			return err
		}
		if wrote {
			created = append(created, f.path)
		}
	}

	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
	}

	fmt.Println()
	fmt.Println("Check the example scenario:")
	fmt.Println("  stagewright parse scenarios/example.yaml")
	fmt.Println()
	fmt.Println("Run it against your base_url:")
	fmt.Println("  stagewright run scenarios/example.yaml")
	return nil
}

// writeIfMissing writes content to path unless it exists and --force is
// off. Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
