package shared

import "fmt"

// ReconcileSweepLockKey builds the redis key guarding the daily sweep.
func ReconcileSweepLockKey() string {
	return "reconcile:sweep:lock"
}

// JobReconcileLockKey builds redis keys for per-job reconciliation sections.
func JobReconcileLockKey(jobID int64) string {
	return fmt.Sprintf("reconcile:job:%d:lock", jobID)
}
