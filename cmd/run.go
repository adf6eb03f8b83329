package cmd

import (
	"os"
	"os/signal"

	"github.com/DominicWuest/calcbench/pkg/calcbench"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// settingsFile is read from the working directory if it exists
const settingsFile = "calcbench.yml"

var freshClone bool

var runCmd = &cobra.Command{
	Use:   "run repos.txt",
	Short: "Test all services listed in a repository list",
	Long: `Test all services listed in a repository list.
The list contains one git repository URL per line, lines starting with # are ignored.
Every repository needs a Dockerfile at its root, building a service which answers GET /healthcheck and POST /calc.

Repositories are cloned into a workspace directory and reused by later runs, unless --fresh is passed.
Settings such as timeouts can be tuned in a calcbench.yml in the working directory.

Once all services were tested, a table comparing their results is printed to stdout.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reposFile, err := os.Open(args[0])
		if err != nil {
			logrus.Fatalf("Failed to open repository list - %v", err)
		}
		services, err := calcbench.ParseServices(reposFile)
		reposFile.Close()
		if err != nil {
			logrus.Fatalf("Failed to read repository list - %v", err)
		}

		settings, err := calcbench.LoadSettings(settingsFile)
		if err != nil {
			logrus.Fatalf("Failed to load settings - %v", err)
		}

		harness := calcbench.Harness{
			Services:   services,
			Settings:   settings,
			FreshClone: freshClone,
			Log:        newLogger(),
		}

		// Interrupting stops the pipelines, containers are still cleaned up
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		report := harness.Run(ctx)

		report.WriteSummary(os.Stderr)
		if err := report.WriteTable(os.Stdout); err != nil {
			logrus.Fatalf("Failed to write report - %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&freshClone, "fresh", "f", false, "Clone all repositories again, even if a workspace from an earlier run exists")
}
