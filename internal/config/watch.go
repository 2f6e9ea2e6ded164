package config

import (
	"log/slog"
	"slices"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the config file whenever it changes on disk and passes
// every valid result to onChange. Only settings that do not shape the status
// cache can be applied live; a changed server list is reported as needing a
// restart because the cache has a fixed set of entries.
func Watch(v *viper.Viper, current Config, logger *slog.Logger, onChange func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		changed, err := unmarshal(v)
		if err != nil {
			logger.Warn("config file changed but is invalid", "file", e.Name, "error", err)
			return
		}
		if !SameServers(current.Servers, changed.Servers) {
			logger.Warn("config file changed server list, restart required to apply",
				"file", e.Name,
				"servers", len(changed.Servers),
			)
		}
		if onChange != nil {
			onChange(changed)
		}
	})
	v.WatchConfig()
}

// SameServers reports whether a and b describe the same server list in the
// same order.
func SameServers(a, b []ServerCfg) bool {
	return slices.Equal(a, b)
}
