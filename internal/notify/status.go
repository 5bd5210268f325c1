package notify

import "github.com/carewire/consultscribe/internal/repository"

// Delivery states advance by rank, never by callback arrival order. Terminal
// states stick; everything else moves only forward.
var statusRanks = map[repository.NotificationStatus]int{
	repository.NotificationStatusQueued:    0,
	repository.NotificationStatusSent:      1,
	repository.NotificationStatusDelivered: 2,
	repository.NotificationStatusRead:      3,
}

func IsTerminal(s repository.NotificationStatus) bool {
	return s == repository.NotificationStatusFailed || s == repository.NotificationStatusUndelivered
}

// Advance merges an incoming callback status into the current one. It
// returns the status to record and whether the arrival was out of rank
// (an anomaly worth logging, never an error).
func Advance(current, incoming repository.NotificationStatus) (repository.NotificationStatus, bool) {
	if IsTerminal(current) {
		return current, current != incoming
	}
	if IsTerminal(incoming) {
		return incoming, false
	}
	currentRank, ok := statusRanks[current]
	if !ok {
		return incoming, true
	}
	incomingRank, ok := statusRanks[incoming]
	if !ok {
		return current, true
	}
	if incomingRank > currentRank {
		return incoming, false
	}
	return current, incomingRank < currentRank
}

// ParseStatus maps a raw provider status string onto the known state set.
func ParseStatus(raw string) (repository.NotificationStatus, bool) {
	switch repository.NotificationStatus(raw) {
	case repository.NotificationStatusQueued,
		repository.NotificationStatusSent,
		repository.NotificationStatusDelivered,
		repository.NotificationStatusRead,
		repository.NotificationStatusFailed,
		repository.NotificationStatusUndelivered:
		return repository.NotificationStatus(raw), true
	}
	return "", false
}
