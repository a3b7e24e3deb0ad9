package ui

import (
	"os/exec"
	"runtime"
	"strings"
)

// Notify sends a desktop notification. Fails silently when no notifier
// is available.
func Notify(title, message string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := `display notification ` + appleScriptString(message) + ` with title ` + appleScriptString(title)
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		if _, err := exec.LookPath("notify-send"); err != nil {
			return
		}
		cmd = exec.Command("notify-send", title, message)
	default:
		return
	}
	_ = cmd.Run()
}

func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
