package storage

// SetNowForTest overrides the storage clock and returns a restore function.
func SetNowForTest(f func() int64) func() {
	prev := nowNano
	nowNano = f
	return func() {
		nowNano = prev
	}
}
