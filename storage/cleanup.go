package storage

import "runtime"

// sweepSampled removes expired keys using the incremental sampling
// approach: sample, delete the expired ones in small batches, and keep
// going while the expired ratio stays above the threshold. saturated is
// true when every round stayed above the threshold.
func (s *Shard) sweepSampled(config CleanupConfig) (reclaimed int, saturated bool) {
	for round := 0; round < config.MaxRounds; round++ {
		expiredKeys := s.sampleExpired(config.SampleSize)
		if len(expiredKeys) == 0 {
			return reclaimed, false
		}

		reclaimed += s.deleteExpiredBatched(expiredKeys, config.BatchSize)

		expiredRatio := float64(len(expiredKeys)) / float64(config.SampleSize)
		if expiredRatio < config.ExpiredThreshold {
			return reclaimed, false
		}

		// Yield CPU briefly between rounds to allow other operations
		runtime.Gosched()
	}
	return reclaimed, true
}

// sampleExpired reads up to sampleSize keys under the read lock and
// returns those that have expired
func (s *Shard) sampleExpired(sampleSize int) []string {
	now := nowNano()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil
	}

	var expiredKeys []string
	sampled := 0
	for key, e := range s.data {
		if e.expired(now) {
			expiredKeys = append(expiredKeys, key)
		}
		sampled++
		if sampled >= sampleSize {
			break
		}
	}
	return expiredKeys
}

// deleteExpiredBatched deletes keys in batches to keep lock hold times short
func (s *Shard) deleteExpiredBatched(keys []string, batchSize int) int {
	reclaimed := 0
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		reclaimed += s.deleteExpiredBatch(keys[i:end])

		if end < len(keys) {
			runtime.Gosched()
		}
	}
	return reclaimed
}

func (s *Shard) deleteExpiredBatch(keys []string) int {
	now := nowNano()
	reclaimed := 0

	s.mu.Lock()
	for _, key := range keys {
		// Double-check expiration under write lock
		if e, ok := s.data[key]; ok && e.expired(now) {
			s.removeLocked(key, e)
			reclaimed++
		}
	}
	s.mu.Unlock()

	s.expired.Add(uint64(reclaimed))
	return reclaimed
}
