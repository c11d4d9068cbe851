// Package util collects small cross-cutting helpers shared by storage
// and buffer pool code.
package util

import (
	"log/slog"
	"os"
)

// CloseFileFunc closes f, logging rather than propagating a close
// error — used on cleanup paths where the caller is already returning
// a more specific error and a failed close is secondary information.
func CloseFileFunc(f *os.File) {
	if err := f.Close(); err != nil {
		slog.Debug("util: close file failed", "error", err)
	}
}
