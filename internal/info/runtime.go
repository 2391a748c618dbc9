package info

import (
	"runtime"
	"runtime/debug"
)

// RuntimeInfo Go 运行时信息
type RuntimeInfo struct {
	Version    string `json:"version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	GOMAXPROCS int    `json:"gomaxprocs"`
	Goroutines int    `json:"goroutines"`
}

// ReadRuntime 读取当前运行时状态
func ReadRuntime() RuntimeInfo {
	return RuntimeInfo{
		Version:    runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		Goroutines: runtime.NumGoroutine(),
	}
}

// BuildInfo 二进制的构建信息，来自编译期嵌入的构建元数据
type BuildInfo struct {
	Module    string `json:"module,omitempty"`
	Version   string `json:"build_version,omitempty"`
	Revision  string `json:"revision,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Modified  bool   `json:"dirty,omitempty"`
}

// ReadBuild 读取构建元数据；非 module 构建时返回零值
func ReadBuild() BuildInfo {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return BuildInfo{}
	}

	b := BuildInfo{
		Module:  bi.Main.Path,
		Version: bi.Main.Version,
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
		case "vcs.time":
			b.BuildTime = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}
