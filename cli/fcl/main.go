// Package main is the CLI command itself.
package main

import (
	"log"
	"os"

	fclcli "go.viam.com/fcl/cli"
)

func main() {
	app := fclcli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
