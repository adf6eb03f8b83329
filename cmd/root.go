package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var verbosity int
var quiet bool

var rootCmd = &cobra.Command{
	Use:   "calcbench",
	Short: "Build, run and compare containerized calculator services",
	Long: `calcbench clones calculator services from their git repositories, builds and runs them in docker,
tests all of them concurrently with the same equations and prints a table comparing their results.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity, can be repeated")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Don't print any logs")
}

// newLogger creates a logger which tags every line with the prefix field and honors the verbosity flags
func newLogger() *logrus.Logger {
	log := logrus.New()

	formatter := &prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	}
	log.SetFormatter(formatter)
	log.SetOutput(os.Stderr)

	// Set logger verbosity
	if quiet {
		log.SetOutput(io.Discard)
	} else if verbosity == 0 {
		log.SetLevel(logrus.InfoLevel)
	} else if verbosity == 1 {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.TraceLevel)
	}

	return log
}
