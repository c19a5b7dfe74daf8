//go:build !unix

package transcode

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup is unsupported here; the stream falls back to
// killing the process itself.
func killProcessGroup(pid int) error {
	return errUnsupportedGroupKill
}
