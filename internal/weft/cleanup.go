package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"flag"
	"fmt"
	"os"
)

// handleCleanCommand removes cached state that a build run leaves behind:
// the plan cache directory, and (when given) a fetch directory's temp
// package database.
func handleCleanCommand(args []string, cfg *Config) error {
	cleanCmd := flag.NewFlagSet("clean", flag.ExitOnError)
	cleanPlanCache := cleanCmd.Bool("plan-cache", false, "Remove all cached plan blobs.")
	fetchDir := cleanCmd.String("fetch-dir", "", "Remove the temp package database under this fetch directory.")
	cleanAll := cleanCmd.Bool("all", false, "plan-cache, plus --fetch-dir's temp package db if given.")

	if err := cleanCmd.Parse(args); err != nil {
		return err
	}

	if *fetchDir == "" {
		*fetchDir = cfg.FetchDir
	}

	if !*cleanPlanCache && *fetchDir == "" && !*cleanAll {
		fmt.Println("Usage: weft clean [--plan-cache] [--fetch-dir <dir>] [--all]")
		cleanCmd.PrintDefaults()
		return nil
	}

	if *cleanAll {
		*cleanPlanCache = true
	}

	if *cleanPlanCache {
		colArrow.Print("-> ")
		cPrintf(colWarn, "Deleting plan cache at %s.\n", planCacheDir)
		if askForConfirmation(colArrow, "Are you sure you want to proceed?") {
			if err := os.RemoveAll(planCacheDir); err != nil {
				return fmt.Errorf("failed to remove plan cache: %w", err)
			}
			colArrow.Print("-> ")
			colSuccess.Println("Plan cache removed.")
		}
	}

	if *fetchDir != "" {
		tempDb := *fetchDir + "/package.conf"
		colArrow.Print("-> ")
		cPrintf(colWarn, "Deleting temp package database at %s.\n", tempDb)
		if askForConfirmation(colArrow, "Are you sure you want to proceed?") {
			if err := os.RemoveAll(tempDb); err != nil {
				return fmt.Errorf("failed to remove temp package database: %w", err)
			}
			colArrow.Print("-> ")
			colSuccess.Println("Temp package database removed.")
		}
	}

	return nil
}
