package ledger

import "time"

// Reservation sources reported to an Observer.
const (
	SourceRecycled = "recycled"
	SourceMinted   = "minted"
	SourceSpecific = "specific"
)

// Release reasons reported to an Observer.
const (
	ReasonCancelled = "cancelled"
	ReasonCompleted = "completed"
	ReasonExpired   = "expired"
)

// Observer receives ledger events after their transaction commits.
type Observer interface {
	NumbersReserved(source string, count int)
	NumbersReleased(reason string, count int64)
	NumberAssigned(golden bool)
	SessionsExpired(count int64)
	AllocationRejected(code string)
	SweepFinished(elapsed time.Duration, err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) NumbersReserved(string, int)        {}
func (NopObserver) NumbersReleased(string, int64)      {}
func (NopObserver) NumberAssigned(bool)                {}
func (NopObserver) SessionsExpired(int64)              {}
func (NopObserver) AllocationRejected(string)          {}
func (NopObserver) SweepFinished(time.Duration, error) {}
