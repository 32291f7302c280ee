package processor

import "strconv"

// ID identifies the CPU or one of the GPUs sharing a virtual address space
type ID uint16

const (
	// MaxProcessors is the number of distinct processor ids, including the CPU
	MaxProcessors = 256

	// CPU is the identifier of the host processor. All CPU threads share it.
	CPU ID = 0
	// Invalid is never a member of any Mask and is used wherever no processor is selected
	Invalid ID = 0xffff
)

// GPU returns the processor id of the GPU with the given zero-based index
func GPU(index int) ID {
	if index < 0 || index >= MaxProcessors-1 {
		return Invalid
	}
	return ID(index + 1)
}

func (id ID) IsValid() bool {
	return id < MaxProcessors
}

func (id ID) IsCPU() bool {
	return id == CPU
}

func (id ID) IsGPU() bool {
	return id != CPU && id.IsValid()
}

// GPUIndex returns the zero-based GPU index for this id, or -1 if the id is not a GPU
func (id ID) GPUIndex() int {
	if !id.IsGPU() {
		return -1
	}
	return int(id) - 1
}

func (id ID) String() string {
	switch {
	case id == CPU:
		return "CPU"
	case id.IsGPU():
		return "GPU" + strconv.Itoa(id.GPUIndex())
	default:
		return "Invalid"
	}
}
