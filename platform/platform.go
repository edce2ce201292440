package platform

type ArchitectureName string
type OperatingSystemName string

const (
	VirtualMachine = ArchitectureName("vm")

	Linux = OperatingSystemName("linux")
)

type Platform interface {
	ArchitectureName() ArchitectureName
	OperatingSystemName() OperatingSystemName

	// Default alignment of each module's code within the linked image.
	CodeAlignment() int

	// Instruction bytes used to pad code between modules.
	Padding(length int) []byte
}
