package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/avoncourt/steward/pkg/steward/capture"
	"github.com/avoncourt/steward/pkg/steward/config"
	"github.com/avoncourt/steward/pkg/steward/instruct"
)

// newSetupCmd creates the `steward setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create steward.yaml and the screen
region file. The generator API key is stored in an encrypted vault
(AES-256-GCM) or the OS keyring — never in plaintext.

Examples:
  steward setup`,
		RunE: runSetup,
	}
}

// storageMethod tracks where the API key was stored during setup.
type storageMethod int

const (
	storageNone    storageMethod = iota
	storageVault                 // encrypted vault (.steward.vault)
	storageKeyring               // OS keyring
)

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()

	var (
		captureCmd  = strings.Join(cfg.Capture.Command, " ")
		actuateCmd  = strings.Join(cfg.Actuate.Command, " ")
		regionSpecs string
		notifyToken string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Capture mode").
				Description("exec runs an OCR command per screen region; file reads pre-captured text").
				Options(
					huh.NewOption("exec (OCR command)", "exec"),
					huh.NewOption("file (text file)", "file"),
				).
				Value(&cfg.Capture.Mode),
			huh.NewInput().
				Title("OCR command").
				Description("region geometry is appended as --x/--y/--width/--height").
				Value(&captureCmd),
			huh.NewInput().
				Title("Text file path (file mode only)").
				Value(&cfg.Capture.TextFile),
			huh.NewInput().
				Title("Screen regions").
				Description("semicolon-separated x,y,width,height tuples, e.g. 0,0,800,600; 0,600,800,200").
				Value(&regionSpecs),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Delivery command").
				Description("{instruction} is substituted; without it the instruction is piped to stdin").
				Value(&actuateCmd),
			huh.NewInput().
				Title("API base URL").
				Value(&cfg.Instruct.BaseURL),
			huh.NewInput().
				Title("Model").
				Value(&cfg.Instruct.Model),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable Discord notifications?").
				Value(&cfg.Notify.Enabled),
			huh.NewInput().
				Title("Discord bot token").
				EchoMode(huh.EchoModePassword).
				Value(&notifyToken),
			huh.NewInput().
				Title("Discord channel ID").
				Value(&cfg.Notify.ChannelID),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	cfg.Capture.Command = splitCommand(captureCmd)
	cfg.Actuate.Command = splitCommand(actuateCmd)
	cfg.Notify.Token = notifyToken

	// ── Regions ──
	if cfg.Capture.Mode == "exec" && regionSpecs != "" {
		regions, err := parseRegionSpecs(regionSpecs)
		if err != nil {
			return err
		}
		if err := capture.SaveRegions(cfg.Capture.RegionFile, regions, nil); err != nil {
			return err
		}
		fmt.Printf("Saved %d region(s) to %s\n", len(regions), cfg.Capture.RegionFile)
	}

	// ── API key ──
	keyStorage := storageNone
	apiKey, err := instruct.ReadPassword("Generator API key (hidden, Enter to skip): ")
	if err == nil && apiKey != "" {
		keyStorage = storeAPIKey(apiKey)
		if keyStorage == storageNone {
			fmt.Println("Could not store the API key securely.")
			fmt.Println("Set it later with 'steward auth set' or STEWARD_API_KEY.")
		}
	}
	// steward.yaml never contains the real key.
	cfg.Instruct.APIKey = "${STEWARD_API_KEY}"

	// ── Save ──
	target := "steward.yaml"
	if _, err := os.Stat(target); err == nil {
		overwrite := false
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite?", target)).
			Value(&overwrite)
		if err := confirm.Run(); err != nil || !overwrite {
			fmt.Println("Setup cancelled. Existing file kept.")
			return nil
		}
	}
	if err := config.SaveToFile(cfg, target); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\n%s created.\n", target)
	switch keyStorage {
	case storageVault:
		fmt.Println("API key encrypted in vault (AES-256-GCM + Argon2id).")
	case storageKeyring:
		fmt.Println("API key stored in the OS keyring.")
	default:
		fmt.Println("No API key configured yet; run 'steward auth set'.")
	}
	fmt.Println("\nNext: steward run")
	return nil
}

// storeAPIKey tries the OS keyring first, then the encrypted vault.
func storeAPIKey(apiKey string) storageMethod {
	if instruct.KeyringAvailable() {
		if err := instruct.StoreKeyring(instruct.KeyAPIKey, apiKey); err == nil {
			return storageKeyring
		}
	}

	fmt.Println("OS keyring unavailable, creating an encrypted vault instead.")
	password, err := instruct.ReadPassword("Vault master password (min 8 chars): ")
	if err != nil || len(password) < 8 {
		fmt.Println("Password too short or unreadable.")
		return storageNone
	}
	confirm, err := instruct.ReadPassword("Confirm password: ")
	if err != nil || password != confirm {
		fmt.Println("Passwords don't match.")
		return storageNone
	}

	vault := instruct.NewVault(instruct.VaultFile)
	if vault.Exists() {
		_ = os.Remove(vault.Path())
		vault = instruct.NewVault(instruct.VaultFile)
	}
	if err := vault.Create(password); err != nil {
		fmt.Printf("Vault creation failed: %v\n", err)
		return storageNone
	}
	defer vault.Lock()
	if err := vault.Set(instruct.KeyAPIKey, apiKey); err != nil {
		fmt.Printf("Failed to store key in vault: %v\n", err)
		return storageNone
	}
	return storageVault
}

// parseRegionSpecs parses "x,y,w,h; x,y,w,h" into named regions.
func parseRegionSpecs(specs string) ([]capture.Region, error) {
	var regions []capture.Region
	for i, spec := range strings.Split(specs, ";") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.Split(spec, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("region %q: want x,y,width,height", spec)
		}
		vals := make([]int, 4)
		for j, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("region %q: %w", spec, err)
			}
			vals[j] = v
		}
		regions = append(regions, capture.Region{
			Name:   fmt.Sprintf("region_%d", i+1),
			X:      vals[0],
			Y:      vals[1],
			Width:  vals[2],
			Height: vals[3],
		})
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("no regions given")
	}
	return regions, nil
}

// splitCommand splits a shell-ish command line on whitespace.
func splitCommand(s string) []string {
	return strings.Fields(s)
}
