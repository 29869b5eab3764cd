package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/startup"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := &dependencies{cfg: cfg, logger: logger}
		boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
		deps.registerTracing(boot)
		deps.registerDatabase(boot)

		if err := boot.Start(cmd.Context()); err != nil {
			return err
		}
		stopDependencies(boot)
		return nil
	},
}

var (
	detectTenant string
	detectType   string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run duplicate detection for one tenant",
	Long:  `Scores every pair of the tenant's organizations and/or contacts and stores new pending suggestions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entityTypes, err := parseDetectTypes(detectType)
		if err != nil {
			return err
		}

		deps := &dependencies{cfg: cfg, logger: logger}
		boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
		deps.registerTracing(boot)
		deps.registerDatabase(boot)
		deps.registerRedis(boot)
		deps.registerKafka(boot)

		if err := boot.Start(cmd.Context()); err != nil {
			return err
		}
		defer stopDependencies(boot)

		engine := deps.engine()
		results := make(map[models.EntityType]*models.DetectResult, len(entityTypes))
		for _, entityType := range entityTypes {
			result, err := engine.Detect(cmd.Context(), detectTenant, entityType)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", entityType, err)
			}
			results[entityType] = result
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectTenant, "tenant", "", "tenant id (required)")
	detectCmd.Flags().StringVar(&detectType, "type", "all", "organization, contact or all")
	_ = detectCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(detectCmd)
}

func parseDetectTypes(raw string) ([]models.EntityType, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return models.EntityTypes, nil
	}
	entityType, err := models.ParseEntityType(raw)
	if err != nil {
		return nil, err
	}
	return []models.EntityType{entityType}, nil
}
