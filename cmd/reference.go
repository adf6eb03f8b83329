package cmd

import (
	"time"

	"github.com/DominicWuest/calcbench/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/phayes/freeport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var referencePort int
var referenceLatency time.Duration

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Serve the reference calculator service",
	Long: `Serve the reference calculator service, which implements the HTTP API every service under test has to implement:

  GET  /healthcheck  -> 200 {"status": "UP"}
  POST /calc {"equation": "1/2 + 1/3"}  -> 200 {"result": "5/6", "equation": "1/2 + 1/3"}
                                        -> 400 {"error": "...", "equation": "..."}

Equations are evaluated with exact rational arithmetic. The Dockerfile at the root of this repository runs this command,
so the repository itself can be listed as a service to test.

Passing port 0 serves on a free port.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if referencePort == 0 {
			var err error
			referencePort, err = freeport.GetFreePort()
			if err != nil {
				logrus.Fatalf("Couldn't get a free port - %v", err)
			}
		}

		if verbosity < 2 {
			gin.SetMode(gin.ReleaseMode)
		}

		logrus.Infof("Serving reference calculator service on port %d", referencePort)
		if err := server.ListenAndServe(referencePort, server.Options{Latency: referenceLatency, Log: newLogger()}); err != nil {
			logrus.Fatalf("Failed to start webserver - %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(referenceCmd)

	referenceCmd.Flags().IntVarP(&referencePort, "port", "p", 8080, "The port on which to start the server")
	referenceCmd.Flags().DurationVar(&referenceLatency, "latency", 0, "Artificial delay added to every calculation")
}
