package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const defaultFile = `# klipper-timeout configuration.
#
# Every key is optional; command-line flags override file values key-by-key.

# Seconds before an unprotected clipboard entry is removed from history.
item_expiry_seconds = 600

# How often to resync the clipboard history from Klipper, in seconds.
update_interval_seconds = 30

# Entries matching any of these regexes are removed immediately, whatever
# their age. Deny wins over never_remove_patterns.
always_remove_patterns = [
    # "^ssh-ed25519",
    # "PRIVATE KEY",
]

# Entries matching any of these regexes are never removed by age. Klipper may
# still evict them on its own.
never_remove_patterns = [
    # "keep this",
]
`

// WriteDefault writes a commented default config file to path. The write is
// atomic so a crash cannot leave a half-written file behind.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%v already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(defaultFile)); err != nil {
		return fmt.Errorf("writing config file %v: %w", path, err)
	}

	return nil
}
