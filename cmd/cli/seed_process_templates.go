package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fizko/internal/models"
	"fizko/internal/process"
	"fizko/internal/process/templateconfig"
)

var (
	seedTemplatesClear   bool
	seedTemplatesVerbose bool
	seedTemplatesFile    string
)

var seedProcessTemplatesCmd = &cobra.Command{
	Use:   "seed_process_templates",
	Short: "Load the canonical F29/F22/F3323 process templates",
	RunE:  runSeedProcessTemplates,
}

func init() {
	seedProcessTemplatesCmd.Flags().BoolVar(&seedTemplatesClear, "clear", false, "delete all existing process templates before reseeding")
	seedProcessTemplatesCmd.Flags().BoolVar(&seedTemplatesVerbose, "verbose", false, "print each template as it is (re)created")
	seedProcessTemplatesCmd.Flags().StringVar(&seedTemplatesFile, "file", "", "additionally seed templates defined in this YAML file")
	rootCmd.AddCommand(seedProcessTemplatesCmd)
}

func runSeedProcessTemplates(cmd *cobra.Command, args []string) error {
	db, log, _, err := openStore()
	if err != nil {
		return err
	}

	if seedTemplatesClear {
		if err := db.Where("1 = 1").Delete(&models.ProcessTemplateTask{}).Error; err != nil {
			return err
		}
		if err := db.Where("1 = 1").Delete(&models.ProcessTemplateConfig{}).Error; err != nil {
			return err
		}
		if seedTemplatesVerbose {
			fmt.Println("cleared existing process templates")
		}
	}

	if err := process.SeedCanonicalTemplates(db); err != nil {
		log.WithError(err).Error("seed_process_templates failed")
		return err
	}

	if seedTemplatesFile != "" {
		seeded, err := templateconfig.SeedFile(db, seedTemplatesFile)
		if err != nil {
			log.WithError(err).Error("seed_process_templates: loading --file failed")
			return err
		}
		if seedTemplatesVerbose {
			fmt.Printf("seeded %d template(s) from %s\n", seeded, seedTemplatesFile)
		}
	}

	if seedTemplatesVerbose {
		var templates []models.ProcessTemplateConfig
		if err := db.Find(&templates).Error; err == nil {
			for _, t := range templates {
				fmt.Printf("template: %s (%s, %s)\n", t.Name, t.ProcessType, t.Recurrence)
			}
		}
	}

	fmt.Println("process templates seeded")
	return nil
}
