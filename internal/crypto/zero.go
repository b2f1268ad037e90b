package crypto

// Zero overwrites a byte slice with zeros. Best effort under a garbage
// collected runtime: earlier copies may survive until collection.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
