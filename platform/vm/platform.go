package vm

import (
	"github.com/hemashushu/xiaoxuan-assembly/platform"
)

const (
	codeAlignment = 16
)

type Platform struct {
	os platform.OperatingSystemName
}

func NewPlatform(os platform.OperatingSystemName) platform.Platform {
	return Platform{
		os: os,
	}
}

func (Platform) ArchitectureName() platform.ArchitectureName {
	return platform.VirtualMachine
}

func (p Platform) OperatingSystemName() platform.OperatingSystemName {
	return p.os
}

func (Platform) CodeAlignment() int {
	return codeAlignment
}

func (Platform) Padding(length int) []byte {
	return nop(length)
}
