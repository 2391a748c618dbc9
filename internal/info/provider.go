package info

import (
	"time"

	"github.com/google/uuid"
)

// ServiceInfo 服务实例的身份信息
type ServiceInfo struct {
	Name       string    `json:"name"`
	InstanceID string    `json:"instance_id"`
	Version    string    `json:"service_version"`
	StartedAt  time.Time `json:"started_at"`
}

// Document 自描述文档，聚合服务、进程、运行时与宿主机信息
type Document struct {
	Service ServiceInfo     `json:"service"`
	Process ProcessSnapshot `json:"process"`
	Runtime RuntimeInfo     `json:"runtime"`
	Host    HostInfo        `json:"host"`
	Build   BuildInfo       `json:"build"`
}

// Provider 自描述信息提供者
// 身份信息在构造时固定，资源用量在每次查询时现取
type Provider struct {
	service ServiceInfo
	proc    *ProcessInfo
}

// NewProvider 创建信息提供者
// instanceID 为空时自动生成
func NewProvider(name, version, instanceID string) *Provider {
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	return &Provider{
		service: ServiceInfo{
			Name:       name,
			InstanceID: instanceID,
			Version:    version,
			StartedAt:  time.Now().UTC(),
		},
		proc: NewProcessInfo(),
	}
}

// Service 服务身份信息
func (p *Provider) Service() ServiceInfo {
	return p.service
}

// Process 进程身份信息
func (p *Provider) Process() *ProcessInfo {
	return p.proc
}

// Document 生成当前时刻的自描述文档
func (p *Provider) Document() Document {
	return Document{
		Service: p.service,
		Process: p.proc.Snapshot(),
		Runtime: ReadRuntime(),
		Host:    ReadHost(),
		Build:   ReadBuild(),
	}
}
