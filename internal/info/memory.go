package info

import (
	"math"
	"runtime"
	"runtime/debug"
)

// Undefined 运行时未提供对应统计时内存字段的取值
const Undefined int64 = -1

// MemoryInfo 堆与非堆两个内存区域的用量快照
type MemoryInfo struct {
	Heap    MemoryUsage `json:"heap"`
	NonHeap MemoryUsage `json:"non_heap"`
}

// MemoryUsage 单个内存区域的用量，单位字节
// 未定义的字段取 Undefined
type MemoryUsage struct {
	Init      int64 `json:"init"`
	Used      int64 `json:"used"`
	Committed int64 `json:"committed"`
	Max       int64 `json:"max"`
}

// ReadMemory 读取内存管理器的当前状态，每次调用产生新快照
//
// 堆区: Used 为存活堆对象占用，Committed 为运行时持有且未归还操作系统的堆空间，
// Max 为 GOMEMLIMIT 软上限（未设置时为 Undefined）。
// 非堆区: 栈、span/cache 元数据、GC 与剖析辅助结构等运行时自用内存。
func ReadMemory() MemoryInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	// 传入负值只读取当前软限制，不修改
	heapMax := Undefined
	if limit := debug.SetMemoryLimit(-1); limit < math.MaxInt64 {
		heapMax = limit
	}

	nonHeapUsed := ms.StackInuse + ms.MSpanInuse + ms.MCacheInuse +
		ms.BuckHashSys + ms.GCSys + ms.OtherSys
	nonHeapCommitted := ms.StackSys + ms.MSpanSys + ms.MCacheSys +
		ms.BuckHashSys + ms.GCSys + ms.OtherSys

	return MemoryInfo{
		Heap: MemoryUsage{
			Init:      Undefined,
			Used:      int64(ms.HeapAlloc),
			Committed: int64(ms.HeapSys - ms.HeapReleased),
			Max:       heapMax,
		},
		NonHeap: MemoryUsage{
			Init:      Undefined,
			Used:      int64(nonHeapUsed),
			Committed: int64(nonHeapCommitted),
			Max:       Undefined,
		},
	}
}
