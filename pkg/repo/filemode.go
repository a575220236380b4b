package repo

import (
	"os"

	"github.com/biogit/biogit/pkg/object"
)

// modeFromFileInfo returns the tree mode for a working-tree file. The
// object model supports only ModeFile and ModeDir; there is no executable
// bit, so regular files always map to ModeFile.
func modeFromFileInfo(info os.FileInfo) string {
	return object.ModeFile
}

func normalizeFileMode(mode string) string {
	if mode == object.ModeDir {
		return object.ModeDir
	}
	return object.ModeFile
}

func filePermFromMode(mode string) os.FileMode {
	return 0o644
}
