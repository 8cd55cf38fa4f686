package backend

import (
	"github.com/stashbin/service/internal/apperror"
	"github.com/stashbin/service/internal/config"
)

// Registry maps storage modes to configured backends. Built once at
// startup; modes without credentials are simply absent.
type Registry struct {
	backends map[Mode]Backend
	primary  Mode
}

// NewRegistry builds the registry from configuration. The primary mode is
// the fallback for unrecognized storage-mode tags at session init.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		backends: make(map[Mode]Backend),
		primary:  ParseMode(cfg.PrimaryStorageMode, ModeS3),
	}

	if cfg.S3AccessKey != "" {
		r.backends[ModeS3] = NewS3(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	}
	if cfg.DiscordWebhookURL != "" || (cfg.DiscordBotToken != "" && cfg.DiscordChannelID != "") {
		r.backends[ModeDiscord] = NewDiscord(cfg.DiscordWebhookURL, cfg.DiscordBotToken, cfg.DiscordChannelID)
	}
	if cfg.HFToken != "" && cfg.HFRepo != "" {
		r.backends[ModeHuggingFace] = NewHuggingFace(cfg.HFEndpoint, cfg.HFToken, cfg.HFRepo, cfg.HFBranch)
	}

	return r
}

// Primary returns the fallback mode for unrecognized tags.
func (r *Registry) Primary() Mode { return r.primary }

// Normalize maps a loose storage-mode string onto a configured mode.
func (r *Registry) Normalize(s string) Mode {
	return ParseMode(s, r.primary)
}

// Get returns the backend for mode, or an AuthError when that provider's
// credentials are not configured.
func (r *Registry) Get(mode Mode) (Backend, error) {
	b, ok := r.backends[mode]
	if !ok {
		return nil, apperror.Auth("storage backend " + string(mode) + " is not configured")
	}
	return b, nil
}

// Modes lists the configured modes.
func (r *Registry) Modes() []Mode {
	modes := make([]Mode, 0, len(r.backends))
	for m := range r.backends {
		modes = append(modes, m)
	}
	return modes
}

// Register adds or replaces the backend for a mode. Used by tests and by
// external adapters (e.g. a Telegram transport) registering themselves.
func (r *Registry) Register(mode Mode, b Backend) {
	r.backends[mode] = b
}
