// Package projectid derives the persisted-state filename stem for a
// project root, shared by the daemon and the one-shot CLI commands so both
// read and write the same snapshot files.
package projectid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// For returns the stem for root: its base name, lowercased and sanitized,
// with a short hash of root appended so two differently-rooted projects
// sharing a base name never collide.
func For(root string) string {
	base := strings.ToLower(filepath.Base(root))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune('_')
		}
	}
	sum := sha256.Sum256([]byte(root))
	suffix := hex.EncodeToString(sum[:4])
	if b.Len() == 0 {
		return "h_" + suffix
	}
	return b.String() + "_" + suffix
}
