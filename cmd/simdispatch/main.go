// simdispatch coordinates simulation jobs across local, remote-session, and
// container backends.
package main

import (
	"log/slog"
	"os"

	"simdispatch/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}
