package spinlock

// Lock is a test-and-set spinlock. The zero value is unlocked.
// It is held for short critical sections only; holders never block.
type Lock struct {
	v int32
}
