// Package runner executes one download job as an external subprocess.
//
// For each job the runner locates the downloader executable (cached for the
// duration of a run), allocates a fresh scratch directory, and spawns:
//
//	<tool> -app <appId> -pubfile <workshopId> -username <account> -password <secret> -dir <scratch>
//
// Key behaviour:
//   - stdout and stderr share one writer drained concurrently with the wait,
//     so a chatty downloader can never fill a pipe and stall
//   - each output line is logged at debug; the last 64KB are kept on the outcome
//   - cancellation of the job context sends SIGTERM, waits a grace period
//     (default 5s), then SIGKILL
//   - an optional hard timeout follows the same termination path
//
// Error handling:
//   - executable not found → ErrToolNotFound, no scratch dir, nothing spawned
//   - scratch allocation or spawn failure → returned error
//   - non-zero exit → Outcome.ExitCode, not an error
//   - cancellation → Outcome.Canceled
//   - timeout → Outcome.TimedOut
//
// The runner never touches the produced files; relocation and scratch removal
// belong to the relocate package.
package runner
