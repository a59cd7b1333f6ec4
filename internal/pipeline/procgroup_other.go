//go:build !unix

package pipeline

import "os/exec"

// configureProcessGroup keeps the default cancel, which kills only the
// direct child; WaitDelay still bounds the wait on its pipes
func configureProcessGroup(cmd *exec.Cmd) {}
