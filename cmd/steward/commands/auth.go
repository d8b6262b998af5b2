package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avoncourt/steward/pkg/steward/instruct"
)

// newAuthCmd creates the `steward auth` command group for managing the
// generator API key.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the generator API key",
		Long: `Store, inspect, or remove the generator API key. The key goes to
the OS keyring when available, otherwise to an encrypted vault
(.steward.vault, AES-256-GCM + Argon2id). Never to steward.yaml.

Examples:
  steward auth set
  steward auth status
  steward auth clear`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Store the API key",
			RunE:  runAuthSet,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show where an API key is configured",
			RunE:  runAuthStatus,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored API key",
			RunE:  runAuthClear,
		},
	)
	return cmd
}

func runAuthSet(_ *cobra.Command, _ []string) error {
	apiKey, err := instruct.ReadPassword("API key (hidden): ")
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	if apiKey == "" {
		return fmt.Errorf("no key entered")
	}

	switch storeAPIKey(apiKey) {
	case storageKeyring:
		fmt.Println("API key stored in the OS keyring.")
	case storageVault:
		fmt.Println("API key encrypted in the vault.")
	default:
		return fmt.Errorf("could not store the key securely")
	}
	return nil
}

func runAuthStatus(_ *cobra.Command, _ []string) error {
	found := false

	if instruct.GetKeyring(instruct.KeyAPIKey) != "" {
		fmt.Println("OS keyring:  api_key set")
		found = true
	}

	vault := instruct.NewVault(instruct.VaultFile)
	if vault.Exists() {
		fmt.Printf("Vault:       %s present (locked)\n", vault.Path())
		found = true
	}

	for _, env := range []string{"STEWARD_API_KEY", "OPENAI_API_KEY"} {
		if os.Getenv(env) != "" {
			fmt.Printf("Environment: %s set\n", env)
			found = true
		}
	}

	if !found {
		fmt.Println("No API key configured. Run 'steward auth set'.")
	}
	return nil
}

func runAuthClear(_ *cobra.Command, _ []string) error {
	cleared := false

	if instruct.GetKeyring(instruct.KeyAPIKey) != "" {
		if err := instruct.DeleteKeyring(instruct.KeyAPIKey); err != nil {
			return fmt.Errorf("clearing keyring: %w", err)
		}
		fmt.Println("Removed from OS keyring.")
		cleared = true
	}

	vault := instruct.NewVault(instruct.VaultFile)
	if vault.Exists() {
		password, err := instruct.ReadPassword("Vault password: ")
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		if err := vault.Unlock(password); err != nil {
			return fmt.Errorf("unlocking vault: %w", err)
		}
		defer vault.Lock()
		if err := vault.Delete(instruct.KeyAPIKey); err == nil {
			fmt.Println("Removed from vault.")
			cleared = true
		}
	}

	if !cleared {
		fmt.Println("No stored API key found.")
	}
	return nil
}
