package main

import (
	"log"
	"os"

	"github.com/harrisonrobin/flowdesk/pkg/cli"
)

func main() {
	logger := log.New(os.Stderr, "flowdesk: ", log.LstdFlags)
	app := cli.NewApp(logger)
	os.Exit(cli.Execute(app, os.Args[1:], os.Stdout, os.Stderr))
}
