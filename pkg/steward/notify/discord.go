// Package notify pushes intervention reports to Discord so an operator
// can follow what the supervisor is doing without watching the logs.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/avoncourt/steward/pkg/steward/supervisor"
)

// Config holds Discord notification settings.
type Config struct {
	// Enabled turns Discord notifications on. Off by default.
	Enabled bool `yaml:"enabled"`

	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// ChannelID is the channel interventions are reported to.
	ChannelID string `yaml:"channel_id"`
}

// DefaultConfig returns notification settings with Discord disabled.
func DefaultConfig() Config {
	return Config{}
}

// Discord sends one message per dispatched intervention. It implements
// supervisor.Notifier.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	connected atomic.Bool
}

// NewDiscord creates a Discord notifier. Connect must be called before
// notifications are delivered.
func NewDiscord(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:    cfg,
		logger: logger.With("component", "notify"),
	}
}

// Connect opens the Discord gateway connection.
func (d *Discord) Connect() error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}
	if d.cfg.ChannelID == "" {
		return fmt.Errorf("discord: channel_id is required")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	// Outbound only; no message content intent needed.
	session.Identify.Intents = discordgo.IntentsGuilds

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)

	user := session.State.User
	d.logger.Info("discord notifier connected", "bot", user.Username, "id", user.ID)
	return nil
}

// Close shuts down the gateway connection.
func (d *Discord) Close() error {
	d.connected.Store(false)
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

// Notify reports one intervention. Delivery failures are logged, never
// propagated: notifications must not affect supervision.
func (d *Discord) Notify(ctx context.Context, rec supervisor.Intervention) {
	if !d.connected.Load() || d.session == nil {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       formatTitle(rec),
		Description: rec.Instruction,
		Color:       kindColor(rec.Kind),
		Timestamp:   rec.Time.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: rec.Reason, Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: rec.ID},
	}

	_, err := d.session.ChannelMessageSendEmbed(d.cfg.ChannelID, embed)
	if err != nil {
		d.logger.Warn("discord notification failed", "id", rec.ID, "err", err)
	}
}

func formatTitle(rec supervisor.Intervention) string {
	switch {
	case rec.Forced:
		return "Forced intervention"
	case rec.Kind == supervisor.KindTimeout:
		return "Stuck-content intervention"
	default:
		return "Intervention dispatched"
	}
}

// kindColor maps intervention kinds to embed sidebar colors.
func kindColor(kind string) int {
	switch kind {
	case supervisor.KindForced:
		return 0xe74c3c // red
	case supervisor.KindTimeout:
		return 0xf39c12 // orange
	default:
		return 0x2ecc71 // green
	}
}
