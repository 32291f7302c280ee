package processor_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/processor"
)

func TestID(t *testing.T) {
	require.True(t, processor.CPU.IsCPU())
	require.False(t, processor.CPU.IsGPU())
	require.Equal(t, "CPU", processor.CPU.String())

	gpu := processor.GPU(3)
	require.True(t, gpu.IsGPU())
	require.Equal(t, 3, gpu.GPUIndex())
	require.Equal(t, "GPU3", gpu.String())

	require.False(t, processor.Invalid.IsValid())
	require.Equal(t, processor.Invalid, processor.GPU(-1))
	require.Equal(t, processor.Invalid, processor.GPU(processor.MaxProcessors))
	require.Equal(t, "Invalid", processor.Invalid.String())
}

func TestMask_SetOperations(t *testing.T) {
	a := processor.MaskOf(processor.CPU, processor.GPU(0), processor.GPU(100))
	b := processor.MaskOf(processor.GPU(0), processor.GPU(200))

	require.Equal(t, 3, a.Count())
	require.Equal(t, processor.MaskOf(processor.GPU(0)), a.And(b))
	require.Equal(t, processor.MaskOf(processor.CPU, processor.GPU(0), processor.GPU(100), processor.GPU(200)), a.Or(b))
	require.Equal(t, processor.MaskOf(processor.CPU, processor.GPU(100)), a.AndNot(b))

	require.True(t, processor.MaskOf(processor.GPU(0)).Subset(a))
	require.False(t, b.Subset(a))
	require.True(t, processor.Mask{}.Subset(b))

	// Set operations return new values and leave the receiver alone
	require.Equal(t, 3, a.Count())
}

func TestMask_TestAndSet(t *testing.T) {
	var m processor.Mask

	require.False(t, m.TestAndSet(processor.GPU(1)))
	require.True(t, m.TestAndSet(processor.GPU(1)))
	require.True(t, m.TestAndClear(processor.GPU(1)))
	require.False(t, m.TestAndClear(processor.GPU(1)))
	require.True(t, m.Empty())

	m.Set(processor.Invalid)
	require.True(t, m.Empty())
	require.False(t, m.Test(processor.Invalid))
}

func TestMask_Iteration(t *testing.T) {
	m := processor.MaskOf(processor.GPU(130), processor.CPU, processor.GPU(62), processor.GPU(63))

	require.Equal(t, processor.CPU, m.First())
	require.Equal(t, []processor.ID{processor.CPU, processor.GPU(62), processor.GPU(63), processor.GPU(130)}, m.IDs())
	require.Equal(t, "{CPU,GPU62,GPU63,GPU130}", m.String())

	var visited []processor.ID
	m.ForEach(func(id processor.ID) bool {
		visited = append(visited, id)
		return len(visited) < 2
	})
	require.Len(t, visited, 2)

	require.Equal(t, processor.Invalid, processor.Mask{}.First())
}
