package info

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessInfo(t *testing.T) {
	p := NewProcessInfo()
	require.NotNil(t, p)

	assert.Equal(t, int32(os.Getpid()), p.PID())

	// 测试进程总有父进程；查询失败时哨兵值兜底
	if p.ParentPID() != NoParent {
		assert.Equal(t, int32(os.Getppid()), p.ParentPID())
	}
}

func TestProcessInfo_IdentityFrozen(t *testing.T) {
	p := NewProcessInfo()

	pid, ppid, owner := p.PID(), p.ParentPID(), p.Owner()
	for i := 0; i < 3; i++ {
		assert.Equal(t, pid, p.PID())
		assert.Equal(t, ppid, p.ParentPID())
		assert.Equal(t, owner, p.Owner())
	}
}

func TestProcessInfo_CPUs(t *testing.T) {
	p := NewProcessInfo()

	n := p.CPUs()
	assert.GreaterOrEqual(t, n, 1)
	assert.GreaterOrEqual(t, p.CPUs(), 1)
}

func TestProcessInfo_Snapshot(t *testing.T) {
	p := NewProcessInfo()
	snap := p.Snapshot()

	assert.Equal(t, p.PID(), snap.PID)
	assert.Equal(t, p.ParentPID(), snap.ParentPID)
	assert.Equal(t, p.Owner(), snap.Owner)
	assert.GreaterOrEqual(t, snap.CPUs, 1)
	assert.Greater(t, snap.Memory.Heap.Used, int64(0))
}

func TestReadMemory(t *testing.T) {
	for i := 0; i < 3; i++ {
		m := ReadMemory()

		assert.Equal(t, Undefined, m.Heap.Init)
		assert.Greater(t, m.Heap.Used, int64(0))
		assert.GreaterOrEqual(t, m.Heap.Committed, m.Heap.Used)

		assert.Equal(t, Undefined, m.NonHeap.Init)
		assert.Greater(t, m.NonHeap.Used, int64(0))
		assert.GreaterOrEqual(t, m.NonHeap.Committed, m.NonHeap.Used)
		assert.Equal(t, Undefined, m.NonHeap.Max)

		if m.Heap.Max != Undefined {
			assert.Greater(t, m.Heap.Max, int64(0))
		}
	}
}

func TestReadMemory_TracksLiveAllocations(t *testing.T) {
	buf := make([]byte, 16<<20)
	for i := range buf {
		buf[i] = byte(i)
	}

	m := ReadMemory()
	assert.GreaterOrEqual(t, m.Heap.Used, int64(len(buf)))

	runtime.KeepAlive(buf)
}
