package stats

import "github.com/docker/docker/api/types"

// CPUPercent returns the share of host CPU time the container used between
// the previous and the current sample, scaled by the number of CPUs it may
// use. Multi-core containers can exceed 100.
//
// A non-positive CPU or system delta yields 0, which covers counter resets
// after a restart and idle containers. A zeroed previous sample, as in the
// first frame of a stream, yields the average since the container started.
func CPUPercent(s *types.StatsJSON) float64 {
	var (
		prevCPU    = s.PreCPUStats.CPUUsage.TotalUsage
		prevSystem = s.PreCPUStats.SystemUsage

		// subtract as float64 so a reset counter goes negative instead of wrapping
		cpuDelta    = float64(s.CPUStats.CPUUsage.TotalUsage) - float64(prevCPU)
		systemDelta = float64(s.CPUStats.SystemUsage) - float64(prevSystem)
		onlineCPUs  = float64(OnlineCPUs(s.CPUStats))
	)

	if systemDelta > 0.0 && cpuDelta > 0.0 {
		return (cpuDelta / systemDelta) * onlineCPUs * 100.0
	}
	return 0.0
}

// OnlineCPUs returns the number of CPUs available to the container. Older
// daemons report 0 here, in which case the length of the per-CPU usage
// breakdown is used. Without either the result is 0.
func OnlineCPUs(cpu types.CPUStats) uint32 {
	if cpu.OnlineCPUs > 0 {
		return cpu.OnlineCPUs
	}
	return uint32(len(cpu.CPUUsage.PercpuUsage))
}
