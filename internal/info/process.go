// Package info 提供运行中服务的进程、运行时与宿主机自描述信息
package info

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// NoParent 父进程不可见时 ParentPID 的取值
const NoParent int32 = -1

// ProcessInfo 当前进程的身份信息
// pid、父 pid 与属主在构造时捕获，之后不再变化
type ProcessInfo struct {
	pid       int32
	parentPID int32
	owner     string
}

// NewProcessInfo 捕获当前进程的身份信息
// 父进程查询失败时 ParentPID 为 NoParent，属主查询失败时 Owner 为空串；构造永不失败
func NewProcessInfo() *ProcessInfo {
	p := &ProcessInfo{
		pid:       int32(os.Getpid()),
		parentPID: NoParent,
	}

	proc, err := process.NewProcess(p.pid)
	if err != nil {
		return p
	}
	if ppid, err := proc.Ppid(); err == nil && ppid >= 0 {
		p.parentPID = ppid
	}
	if owner, err := proc.Username(); err == nil {
		p.owner = owner
	}
	return p
}

// PID 当前进程号
func (p *ProcessInfo) PID() int32 {
	return p.pid
}

// ParentPID 父进程号，不可见时为 NoParent
func (p *ProcessInfo) ParentPID() int32 {
	return p.parentPID
}

// Owner 进程属主，未知时为空串
func (p *ProcessInfo) Owner() string {
	return p.owner
}

// CPUs 进程当前可用的逻辑 CPU 数
// 每次调用都重新查询，容器资源配额调整后返回值会跟着变化
func (p *ProcessInfo) CPUs() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Snapshot 组合身份信息与当前资源用量
func (p *ProcessInfo) Snapshot() ProcessSnapshot {
	return ProcessSnapshot{
		PID:       p.pid,
		ParentPID: p.parentPID,
		Owner:     p.owner,
		CPUs:      p.CPUs(),
		Memory:    ReadMemory(),
	}
}

// ProcessSnapshot 进程状态的一次性快照
type ProcessSnapshot struct {
	PID       int32      `json:"pid"`
	ParentPID int32      `json:"parent_pid"`
	Owner     string     `json:"owner,omitempty"`
	CPUs      int        `json:"cpus"`
	Memory    MemoryInfo `json:"memory"`
}
