// Package main is the markertrack command.
package main

import (
	"log"
	"os"

	"github.com/fiducial-nav/markerpose/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
