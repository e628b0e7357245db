package screening

import (
	"context"
	"time"
)

// Store is the system of record for screening calls.
//
// Every method is an atomic single-record operation (List is a snapshot read).
// Finalize is a compare-and-set: it only applies to a non-terminal row, which is
// what makes concurrent finalizers (webhook, retrieval, reaper) safe.
type Store interface {
	Create(ctx context.Context, c Call) (Call, error)
	Get(ctx context.Context, id string) (Call, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error)
	List(ctx context.Context, f Filter) ([]Call, error)

	// AttachProviderCall stores the provider correlation id on a non-terminal call.
	AttachProviderCall(ctx context.Context, id, providerCallID string, now time.Time) error

	// MarkInProgress moves scheduled -> in_progress. Returns false if the row was
	// not scheduled any more.
	MarkInProgress(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// Finalize applies f if the row is not yet terminal. It returns the stored row
	// and whether this call performed the transition.
	Finalize(ctx context.Context, id string, f Finalization) (Call, bool, error)
}

// Counts summarizes an application's attempts for admission.
type Counts struct {
	Active    int
	Completed int
	Rejected  int
}

// CountFor tallies calls by status bucket.
func CountFor(calls []Call) Counts {
	var out Counts
	for _, c := range calls {
		switch {
		case c.Status.Active():
			out.Active++
		case c.Status == StatusCompleted:
			out.Completed++
		case c.Status == StatusRejected:
			out.Rejected++
		}
	}
	return out
}
