package pool

// Observer receives synchronous lifecycle notifications from a pool. The
// pool invokes observers on the goroutine that triggered the event, outside
// its internal lock, so ordering per instance follows the get/return
// ordering the caller observes. Observers must not block.
type Observer interface {
	// ObjectCreated fires after the factory produced a new instance.
	ObjectCreated(pool string, id uint64)
	// ObjectReturned fires after a valid instance re-entered the idle set.
	ObjectReturned(pool string, id uint64)
	// ObjectDestroyed fires after an instance left the pool for good.
	ObjectDestroyed(pool string, id uint64)
}

func (p *Pool[T]) notifyCreated(id uint64) {
	for _, o := range p.observers {
		o.ObjectCreated(p.cfg.Name, id)
	}
}

func (p *Pool[T]) notifyReturned(id uint64) {
	for _, o := range p.observers {
		o.ObjectReturned(p.cfg.Name, id)
	}
}

func (p *Pool[T]) notifyDestroyed(id uint64) {
	for _, o := range p.observers {
		o.ObjectDestroyed(p.cfg.Name, id)
	}
}
