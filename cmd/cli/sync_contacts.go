package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fizko/internal/contacts"
)

var (
	syncContactsCompanyID string
	syncContactsDryRun    bool
)

var syncContactsCmd = &cobra.Command{
	Use:   "sync_contacts",
	Short: "Rebuild contacts from existing documents",
	Long:  "Rebuilds contacts from existing documents using the same rules as the signal path (C9); prints counters.",
	RunE:  runSyncContacts,
}

func init() {
	syncContactsCmd.Flags().StringVar(&syncContactsCompanyID, "company-id", "", "restrict to a single company (UUID)")
	syncContactsCmd.Flags().BoolVar(&syncContactsDryRun, "dry-run", false, "scan without persisting any change")
	rootCmd.AddCommand(syncContactsCmd)
}

func runSyncContacts(cmd *cobra.Command, args []string) error {
	db, log, _, err := openStore()
	if err != nil {
		return err
	}

	var companyID uuid.UUID
	if syncContactsCompanyID != "" {
		companyID, err = uuid.Parse(syncContactsCompanyID)
		if err != nil {
			return &configError{cause: fmt.Errorf("invalid --company-id: %w", err)}
		}
	}

	result, err := contacts.Rebuild(context.Background(), db, companyID, syncContactsDryRun)
	if err != nil {
		log.WithError(err).Error("sync_contacts failed")
		return err
	}

	fmt.Printf("documents scanned: %d\n", result.DocumentsScanned)
	fmt.Printf("contacts created:  %d\n", result.ContactsCreated)
	fmt.Printf("contacts updated:  %d\n", result.ContactsUpdated)
	return nil
}
