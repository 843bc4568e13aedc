package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List contacts eligible for messaging",
	Long: `List the users you can start a conversation with.

Examples:
  chatkit contacts
  chatkit contacts -v`,
	RunE: runContacts,
}

func runContacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	contacts, err := apiClient.Contacts(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}

	if len(contacts) == 0 {
		fmt.Println("No contacts found.")
		return nil
	}

	fmt.Printf("Contacts (%d):\n\n", len(contacts))
	for _, c := range contacts {
		roleMark := ""
		if c.Role != "" {
			roleMark = fmt.Sprintf(" [%s]", c.Role)
		}
		fmt.Printf("- %s%s\n", c.Name, roleMark)
		if verbose {
			fmt.Printf("  ID: %s\n", c.ID)
		}
	}

	return nil
}
