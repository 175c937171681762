package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// FijiHomeEnv names an optional Fiji.app directory searched when the
// configured launcher is not on PATH.
const FijiHomeEnv = "FIJI_HOME"

// CheckFiji reports the Fiji/ImageJ launcher the stitcher will execute.
//
// The configured command is resolved through PATH first. When that fails and
// FIJI_HOME points at a Fiji.app directory, the platform launcher inside it is
// used instead.
func CheckFiji(command string) Status {
	result := CheckBinaries([]Requirement{{
		Name:        "Fiji",
		Command:     command,
		Description: "Required for stitching",
	}})[0]
	if result.Available {
		result.Command = result.Path
		return result
	}

	if home := strings.TrimSpace(os.Getenv(FijiHomeEnv)); home != "" {
		candidate := filepath.Join(home, fijiLauncherName())
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = candidate
			result.Path = candidate
			result.Available = true
			result.Detail = ""
			return result
		}
	}
	return result
}

// ResolveFijiPath returns the launcher CheckFiji found, or the configured
// command unchanged when nothing resolved.
func ResolveFijiPath(command string) string {
	status := CheckFiji(command)
	if status.Command == "" {
		return strings.TrimSpace(command)
	}
	return status.Command
}

func fijiLauncherName() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join("Contents", "MacOS", "ImageJ-macosx")
	case "windows":
		return "ImageJ-win64.exe"
	default:
		return "ImageJ-linux64"
	}
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
