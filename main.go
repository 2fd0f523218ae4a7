package main

import (
	"os"

	"clinic-sync/core/logger"
	"clinic-sync/core/server"
)

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", "error", err)
		os.Exit(1)
	}
}
