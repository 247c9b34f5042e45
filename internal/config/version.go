package config

// Version is the screener binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/screener/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
