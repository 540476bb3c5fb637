package config

// Build metadata, set at link time via -ldflags.
var (
	Version   = "dev"
	Commit    = ""
	Branch    = ""
	BuildDate = ""
)
