// Command beacon serves one experiment to a radar control process.
package main

import (
	"os"

	"github.com/zoobzio/capitan"
)

func main() {
	err := newRootCmd(defaultDeps()).Execute()
	capitan.Shutdown()
	if err != nil {
		os.Exit(1)
	}
}
