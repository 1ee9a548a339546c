package model

import "time"

// Counts are the observed inputs for one day.
type Counts struct {
	ActiveHolders int64 // Nt
	NewDonors     int64 // Dt
	Source        string
	FetchedAt     time.Time
}
