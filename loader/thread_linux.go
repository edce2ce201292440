//go:build linux

package loader

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Binds the calling goroutine to its OS thread and returns a thread whose
// identity is the OS thread id.  Thread-local storage therefore follows the
// OS thread, as natively compiled code would observe it.  The returned
// thread's Exit must be called from the same goroutine.
func (process *Process) AttachOSThread() (*Thread, error) {
	runtime.LockOSThread()

	return newThread(
		process,
		ThreadId(unix.Gettid()),
		runtime.UnlockOSThread), nil
}
