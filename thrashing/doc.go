// Package thrashing detects pages that repeatedly migrate or lose access permissions between the
// processors of a unified virtual address space, and advises the residency engine how to stop it.
//
// The residency engine reports completed migrations and permission revocations through
// Space.OnMigration and Space.OnRevocation. The fault handler asks Space.GetHint what to do before
// servicing a fault: nothing, throttle the faulting processor until a deadline, or pin the page on
// one processor and map the other thrashing processors to it remotely. Pinned pages are unpinned
// automatically after a configurable duration by a deferred sweep owned by the Space.
//
// All per-page state of a Block is guarded by the block lock, which the caller must hold around
// every engine entry point that takes a Block. The caller must also hold the Space lock in read
// mode. The pinned page registry lock is always acquired beneath the block lock.
package thrashing
