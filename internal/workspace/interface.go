package workspace

import (
	"context"
	"time"
)

// Scratch is a job-scoped download directory. The downloader writes into Dir;
// the relocator empties and removes it once the job is over.
type Scratch struct {
	Name       string
	WorkshopID string
	Dir        string
}

// CleanupReport summarizes a cleanup run.
type CleanupReport struct {
	DeletedDirs int
}

// Manager governs scratch directory lifecycle.
type Manager interface {
	// Create allocates a fresh, uniquely named scratch directory for one job.
	Create(ctx context.Context, workshopID string) (Scratch, error)

	// Remove deletes a scratch directory. A missing directory is not an error.
	Remove(ctx context.Context, s Scratch) error

	// Cleanup removes scratch directories left behind longer than olderThan,
	// typically by a crashed process.
	Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error)
}
