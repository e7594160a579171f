package health

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSampler reports host CPU and memory usage in percent.
type ResourceSampler interface {
	Sample() (cpuPercent, memPercent float64, err error)
}

// SystemSampler reads usage from the host via gopsutil.
type SystemSampler struct{}

// Sample returns CPU usage since the previous call and current memory
// usage. The first call reports CPU as zero; gopsutil needs a prior
// measurement to diff against.
func (SystemSampler) Sample() (float64, float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, fmt.Errorf("sample cpu: %w", err)
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, fmt.Errorf("sample memory: %w", err)
	}
	return cpuPct, vm.UsedPercent, nil
}

var _ ResourceSampler = SystemSampler{}
