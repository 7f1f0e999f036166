// Command groomctl is the operator CLI for the grooming booking service.
package main

import (
	"os"
	_ "time/tzdata"

	"github.com/wolfman30/grooming-booking/cmd/mainconfig"
)

func main() {
	root := newRootCmd(&env{
		loadConfig: mainconfig.LoadConfig,
		awsLoader:  mainconfig.AWSLoader,
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
