package bulk

import (
	"sync"

	"github.com/digicard/backend/tenant"
)

// Process-wide drain guard. At most one drain runs per tenant region set;
// a second submit while a drain is in flight is a no-op because the running
// drain will pick up the newly queued rows anyway.
var drains = struct {
	mu     sync.Mutex
	active map[string]bool
}{active: make(map[string]bool)}

func drainKey(ref tenant.Ref) string {
	return ref.PrimaryID + "/" + ref.SubID
}

func tryAcquireDrain(key string) bool {
	drains.mu.Lock()
	defer drains.mu.Unlock()
	if drains.active[key] {
		return false
	}
	drains.active[key] = true
	return true
}

func releaseDrain(key string) {
	drains.mu.Lock()
	defer drains.mu.Unlock()
	delete(drains.active, key)
}
