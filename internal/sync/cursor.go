package sync

// NextCursor converts the last server version a client has seen into the
// version floor for its next pull: lastSeen+1 when present, nil meaning no
// lower bound. Emitting results in ascending version order lets the client
// persist the highest returned version and resume without loss or
// duplication.
func NextCursor(lastSeen *int64) *int64 {
	if lastSeen == nil {
		return nil
	}
	next := *lastSeen + 1
	return &next
}
