package storage

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/raniellyferreira/arenacache/storage/policy"
)

// Workload benchmarks over the manager:
// 1. Read-heavy (95% reads), balanced (80%) and write-heavy (50%) mixes
// 2. Shard count scaling under a fixed goroutine count
// 3. Goroutine scaling against a fixed shard count
// 4. Heap object count after loading a large dataset

func newBenchManager(b *testing.B, shards int, h Hasher) *Manager {
	b.Helper()
	m, err := NewManager(
		WithShardCount(shards),
		WithShardCapacity(4<<20),
		WithLimits(64, 1024),
		WithHasher(h),
		WithEvictionPolicy(policy.SampledLRU{N: 5}),
		WithCleanup(CleanupConfigDefault, 0),
	)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = m.Close() })
	return m
}

func prepopulate(b *testing.B, m *Manager, n int) {
	b.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%d", i)
		value := fmt.Sprintf("value%d", i)
		if err := m.Put([]byte(key), []byte(value), 0); err != nil {
			b.Fatal(err)
		}
	}
}

func runMix(b *testing.B, m *Manager, writeEvery int) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%writeEvery == 0 {
				key := fmt.Sprintf("newkey%d", i%10000)
				_ = m.Put([]byte(key), []byte("newvalue"), 0)
			} else {
				key := fmt.Sprintf("key%d", i%1000)
				_, _ = m.View([]byte(key), func([]byte) {})
			}
			i++
		}
	})
}

func BenchmarkMixed(b *testing.B) {
	mixes := []struct {
		name       string
		writeEvery int
	}{
		{"ReadHeavy", 20},
		{"Balanced", 5},
		{"WriteHeavy", 2},
	}
	for _, mix := range mixes {
		for _, shards := range []int{1, 16} {
			b.Run(fmt.Sprintf("%s/shards=%d", mix.name, shards), func(b *testing.B) {
				m := newBenchManager(b, shards, XXHash{})
				prepopulate(b, m, 1000)
				runMix(b, m, mix.writeEvery)
			})
		}
	}
}

func BenchmarkScaling(b *testing.B) {
	for _, goroutines := range []int{1, 2, 4, 8, 16} {
		b.Run(fmt.Sprintf("goroutines=%d", goroutines), func(b *testing.B) {
			m := newBenchManager(b, 16, XXHash{})
			prepopulate(b, m, 1000)
			b.ResetTimer()

			var wg sync.WaitGroup
			opsPerGoroutine := b.N / goroutines
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for i := 0; i < opsPerGoroutine; i++ {
						if i%10 == 0 { // 10% writes
							key := fmt.Sprintf("newkey%d_%d", id, i%1000)
							_ = m.Put([]byte(key), []byte("newvalue"), 0)
						} else {
							key := fmt.Sprintf("key%d", i%1000)
							_, _ = m.View([]byte(key), func([]byte) {})
						}
					}
				}(g)
			}
			wg.Wait()
		})
	}
}

func BenchmarkThroughput(b *testing.B) {
	for _, h := range []Hasher{XXHash{}, FNV1a{}} {
		b.Run(h.Name(), func(b *testing.B) {
			m := newBenchManager(b, 16, h)
			prepopulate(b, m, 1000)
			b.ResetTimer()

			start := time.Now()
			b.RunParallel(func(pb *testing.PB) {
				r := rand.New(rand.NewSource(time.Now().UnixNano()))
				for pb.Next() {
					key := fmt.Sprintf("key%d", r.Intn(1000))
					_, _ = m.View([]byte(key), func([]byte) {})
				}
			})
			b.ReportMetric(float64(b.N)/time.Since(start).Seconds(), "ops/sec")
		})
	}
}

// BenchmarkHeapObjects reports how many heap objects a loaded keyspace
// keeps alive. Values live in the shard arenas, so the count tracks keys
// rather than values.
func BenchmarkHeapObjects(b *testing.B) {
	for _, n := range []int{10000, 100000} {
		b.Run(fmt.Sprintf("keys=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				runtime.GC()
				var before, after runtime.MemStats
				runtime.ReadMemStats(&before)

				m := newBenchManager(b, 16, XXHash{})
				prepopulate(b, m, n)

				runtime.GC()
				runtime.ReadMemStats(&after)
				b.ReportMetric(float64(int64(after.HeapObjects)-int64(before.HeapObjects))/float64(n), "objects/key")
				runtime.KeepAlive(m)
			}
		})
	}
}
