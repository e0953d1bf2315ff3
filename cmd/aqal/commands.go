// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
	"github.com/topherchris420/aqal/cmd/aqal/config"
	"github.com/topherchris420/aqal/pkg/ux"
)

// --- Global Command Variables ---
var (
	profilePath      string
	jsonOutput       bool
	outputPath       string
	importPath       string
	backupBucket     string
	personalityLevel string

	rootCmd = &cobra.Command{
		Use:   "aqal",
		Short: "AQAL Studio: integral profile builder and insight engine",
		Long: `aqal serves the AQAL Studio API and works with a local profile:
render its four-quadrant map, generate insights, run the assessment,
and export, import or back up its data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "serve" {
				return nil
			}
			if err := config.Load(); err != nil {
				return err
			}
			level := personalityLevel
			if level == "" {
				level = config.Global.Personality
			}
			if level != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(level))
			} else {
				ux.InitPersonality()
			}
			if jsonOutput {
				ux.SetPersonalityLevel(ux.PersonalityMachine)
			}
			return nil
		},
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the AQAL Studio HTTP service (configured from the environment)",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- Profile ---
	insightsCmd = &cobra.Command{
		Use:   "insights",
		Short: "Generate the insight report and development plan for a profile",
		Args:  cobra.NoArgs,
		RunE:  runInsights, // Defined in cmd_profile.go
	}
	mapCmd = &cobra.Command{
		Use:   "map",
		Short: "Render the four-quadrant map of a profile",
		Args:  cobra.NoArgs,
		RunE:  runMap, // Defined in cmd_profile.go
	}
	assessCmd = &cobra.Command{
		Use:   "assess",
		Short: "Run the interactive assessment and save the updated profile",
		Args:  cobra.NoArgs,
		RunE:  runAssess, // Defined in cmd_assess.go
	}

	// --- Data ---
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export the local user's data as JSON",
		Long:  "Export the local user's data as JSON. The store is locked while the service runs against the same data directory.",
		Args:  cobra.NoArgs,
		RunE:  runExport, // Defined in cmd_data.go
	}
	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Replace the local user's data with an export document",
		Args:  cobra.NoArgs,
		RunE:  runImport, // Defined in cmd_data.go
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show local store statistics and sweep expired entries",
		Args:  cobra.NoArgs,
		RunE:  runStats, // Defined in cmd_data.go
	}
	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Upload an export of the local user's data to Google Cloud Storage",
		Args:  cobra.NoArgs,
		RunE:  runBackup, // Defined in backup.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard, minimal or machine")

	for _, cmd := range []*cobra.Command{insightsCmd, mapCmd, assessCmd} {
		cmd.Flags().StringVar(&profilePath, "profile", "",
			"Profile JSON file (a profile, user data, or export document). Default: the local store")
	}
	insightsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	mapCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the map as JSON")
	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the stats as JSON")

	exportCmd.Flags().StringVarP(&outputPath, "out", "o", "", "Write to a file instead of stdout")
	importCmd.Flags().StringVarP(&importPath, "file", "f", "", "Export document to import (required)")
	_ = importCmd.MarkFlagRequired("file")
	backupCmd.Flags().StringVar(&backupBucket, "bucket", "", "GCS bucket. Default: backup.bucket from the config")

	rootCmd.AddCommand(serveCmd, insightsCmd, mapCmd, assessCmd, exportCmd, importCmd, statsCmd, backupCmd)
}
