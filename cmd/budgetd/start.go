package main

import (
	"fmt"
	"os"

	"github.com/allaspectsdev/budgetd/internal/config"
	"github.com/allaspectsdev/budgetd/internal/daemon"
)

func cmdStart(args []string) {
	foreground := false
	for _, a := range args {
		if a == "--foreground" || a == "-f" {
			foreground = true
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := daemon.Run(cfg, foreground); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdStop() {
	if err := daemon.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping server: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("budgetd stopped")
}

func cmdStatus() {
	if err := daemon.Status(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func cmdInitConfig() {
	if err := config.InitConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error generating config: %v\n", err)
		os.Exit(1)
	}
}
