package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
	"pocketbook/internal/sheets"
	"pocketbook/internal/sheets/google"
	sheetsmem "pocketbook/internal/sheets/memory"
)

var (
	flagCategoryType string
	flagSeedDir      string
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories offered for scheduled payments",
	Long:  "List categories from the Google Sheets catalog when GOOGLE_SPREADSHEET_ID is set, " +
		"otherwise from seed files or the built-in defaults.",
	Args: cobra.NoArgs,
	RunE: runCategories,
}

func init() {
	categoriesCmd.Flags().StringVarP(&flagCategoryType, "type", "t", string(core.Expense), "income or expense")
	categoriesCmd.Flags().StringVar(&flagSeedDir, "seed-dir", ".", "Directory holding seed_*_categories.txt")
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, _ []string) error {
	typ, err := core.ParseEntryType(flagCategoryType)
	if err != nil {
		return err
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var reader sheets.CategoryReader = sheetsmem.NewFromFiles(flagSeedDir)
	if cfg.GoogleSpreadsheetID != "" {
		client, err := google.New(cmd.Context(), google.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CategoriesSheet: cfg.GoogleCategoriesSheet,
		})
		if err != nil {
			logger.Warn("Google Sheets unavailable, using local categories", log.FieldError, err)
		} else {
			reader = client
		}
	}

	cats, err := reader.Categories(cmd.Context(), typ)
	if err != nil {
		return err
	}
	for _, c := range cats {
		fmt.Println(c)
	}
	return nil
}
