package main

import (
	"github.com/chapelware/gather/cmd"
	"github.com/chapelware/gather/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
