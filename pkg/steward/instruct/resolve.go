package instruct

import (
	"log/slog"
	"os"
	"strings"
)

// ResolveAPIKey fills cfg.APIKey from the resolution chain: encrypted
// vault → OS keyring → STEWARD_API_KEY / OPENAI_API_KEY environment →
// value already present in the config. The config is updated in place;
// a locked vault prompts for the master password once.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	vault := NewVault(VaultFile)
	if vault.Exists() {
		if !vault.IsUnlocked() {
			password, err := ReadPassword("Vault password: ")
			if err != nil {
				logger.Warn("failed to read vault password", "error", err)
			} else if err := vault.Unlock(password); err != nil {
				logger.Warn("failed to unlock vault", "error", err)
			}
		}
		if vault.IsUnlocked() {
			val, err := vault.Get(KeyAPIKey)
			vault.Lock()
			if err == nil && val != "" {
				cfg.APIKey = val
				logger.Debug("API key loaded from encrypted vault")
				return
			}
		}
	}

	if val := GetKeyring(KeyAPIKey); val != "" {
		cfg.APIKey = val
		logger.Debug("API key loaded from OS keyring")
		return
	}

	for _, name := range []string{"STEWARD_API_KEY", "OPENAI_API_KEY"} {
		if val := os.Getenv(name); val != "" {
			cfg.APIKey = val
			logger.Debug("API key loaded from environment", "var", name)
			return
		}
	}

	// Keep a value the config loader already resolved, but never an
	// unexpanded ${VAR} reference.
	if cfg.APIKey != "" && !strings.Contains(cfg.APIKey, "${") {
		logger.Debug("API key loaded from config")
		return
	}
	cfg.APIKey = ""

	logger.Warn("no API key found, run 'steward auth set' or set STEWARD_API_KEY")
}
