package applications

import "context"

// Service is the application boundary used by the screening core.
//
// UpdateStatus is atomic: the status change and the timeline entry are written
// together. created is false when an entry with the same DedupeKey already
// existed; in that case nothing is written and the existing entry is returned.
type Service interface {
	Get(ctx context.Context, id string) (Application, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (entry TimelineEntry, created bool, err error)
}
