package maintenance

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ajitpratap0/poolkit/pkg/poolerrors"
)

var errAlreadyRunning = poolerrors.New(poolerrors.ErrorTypeMaintenance, "scheduler already running")

// systemMemoryUsage reports the fraction of system memory currently in
// use, in [0, 1].
func systemMemoryUsage() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, poolerrors.Wrap(err, poolerrors.ErrorTypeMaintenance, "failed to read memory stats")
	}
	return vm.UsedPercent / 100, nil
}
