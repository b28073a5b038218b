package lib

import (
	"fmt"
	"sync"
)

var timerPool = &TimerPool{sp: sync.Pool{}, m: newPoolMetrics()}
var pendingRequestPool = &PendingRequestPool{sp: sync.Pool{}, m: newPoolMetrics()}
var pendingWritePool = &PendingWritePool{sp: sync.Pool{}, m: newPoolMetrics()}

// StartPoolMetrics starts folding the pool counters into their accumulators every
// DefaultTickerDuration. Stop it with ReleasePoolMetrics.
func StartPoolMetrics() {
	timerPool.m.start()
	pendingRequestPool.m.start()
	pendingWritePool.m.start()
}

func ReleasePoolMetrics() {
	timerPool.m.release()
	pendingRequestPool.m.release()
	pendingWritePool.m.release()
}

func JsonStringPoolMetrics() string {
	return fmt.Sprintf("{\"timerPool\" = %s, \"pendingRequestPool\" = %s, \"pendingWritePool\" = %s}",
		timerPool.m.metricsString(),
		pendingRequestPool.m.metricsString(),
		pendingWritePool.m.metricsString(),
	)
}
