//go:build !linux

package loader

func (process *Process) AttachOSThread() (*Thread, error) {
	return nil, ErrOSThreadUnsupported
}
