package info

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// HostInfo 宿主机信息
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	KernelArch      string `json:"kernel_arch,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_seconds,omitempty"`
}

// ReadHost 读取宿主机信息
// 系统查询失败时降级为主机名加操作系统类型
func ReadHost() HostInfo {
	hi, err := host.Info()
	if err != nil {
		hostname, _ := os.Hostname()
		return HostInfo{
			Hostname: hostname,
			OS:       runtime.GOOS,
		}
	}

	return HostInfo{
		Hostname:        hi.Hostname,
		OS:              hi.OS,
		Platform:        hi.Platform,
		PlatformVersion: hi.PlatformVersion,
		KernelVersion:   hi.KernelVersion,
		KernelArch:      hi.KernelArch,
		UptimeSeconds:   hi.Uptime,
	}
}
