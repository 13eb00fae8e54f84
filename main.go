package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/cmd"
)

// Version is the official version of the application. Set at build time.
var Version = "0.1.0"

// GitCommit is populated at build time by
// go build -ldflags "-X main.GitCommit=$GIT_COMMIT"
var GitCommit string

func main() {
	if err := cmd.SetupCLI(Version, GitCommit).Execute(); err != nil {
		log.Fatalf("Error executing command: %s", err.Error())
	}
}
