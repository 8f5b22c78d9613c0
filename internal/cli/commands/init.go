package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/doclens-dev/doclens/internal/cli/config"
)

var (
	initKBURI    string
	initDatabase string
	initForce    bool
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a doclens.yml in the current directory",
		Long: `Create a doclens configuration file interactively.

Flags skip the corresponding prompts, so 'doclens init --kb-uri ... --database ...'
works unattended.`,
		RunE: runInit,
	}

	cmd.Flags().StringVar(&initKBURI, "kb-uri", "", "Knowledge base connection URI")
	cmd.Flags().StringVar(&initDatabase, "database", "", "Knowledge base database name")
	cmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing doclens.yml")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	if config.InProject() && !initForce {
		return fmt.Errorf("doclens.yml already exists (use --force to overwrite)")
	}

	kbURI := initKBURI
	if kbURI == "" {
		prompt := &survey.Input{
			Message: "Knowledge base URI:",
			Default: "mongodb://localhost:27017",
		}
		if err := survey.AskOne(prompt, &kbURI, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	database := initDatabase
	if database == "" {
		prompt := &survey.Input{
			Message: "Knowledge base database:",
			Default: "doclens",
		}
		if err := survey.AskOne(prompt, &database, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	var repoInput string
	if initKBURI == "" || initDatabase == "" { // interactive session
		prompt := &survey.Input{
			Message: "Repositories to scan (comma-separated paths, empty for none):",
		}
		if err := survey.AskOne(prompt, &repoInput); err != nil {
			return err
		}
	}

	sampling := false
	if initKBURI == "" || initDatabase == "" {
		prompt := &survey.Confirm{
			Message: "Enable runtime sampling of live collections?",
			Default: false,
		}
		if err := survey.AskOne(prompt, &sampling); err != nil {
			return err
		}
	}

	content := renderConfig(kbURI, database, splitRepos(repoInput), sampling)
	if err := os.WriteFile("doclens.yml", []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing doclens.yml: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Fprintln(cmd.OutOrStdout(), "✓ Created doclens.yml")
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  doclens scan <repository-path>")
	return nil
}

func splitRepos(input string) []string {
	var repos []string
	for _, part := range strings.Split(input, ",") {
		if p := strings.TrimSpace(part); p != "" {
			repos = append(repos, p)
		}
	}
	return repos
}

func renderConfig(kbURI, database string, repos []string, sampling bool) string {
	var b strings.Builder
	if len(repos) > 0 {
		b.WriteString("repositories:\n")
		for _, r := range repos {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	fmt.Fprintf(&b, "knowledge_base:\n  uri: %s\n  database: %s\n", kbURI, database)
	fmt.Fprintf(&b, "sampling:\n  enabled: %t\n  pii_detection: true\n", sampling)
	b.WriteString("scan:\n  workers: 4\n  file_workers: 8\n  state_path: .doclens/state.db\n")
	return b.String()
}
