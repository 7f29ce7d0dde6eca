// Package bench measures local cache performance under concurrent read
// and write load.
//
// The scenario mirrors the client's worst case: a UI polling task and
// event lists while optimistic writes stream into the same SQLite file.
// The WAL-mode cache must keep list latency low while the mutation queue
// grows, since every user interaction reads through it.
package bench

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/model"
)

// Config defines the parameters for a benchmark run.
type Config struct {
	// Readers is the number of concurrent list readers to simulate.
	Readers int

	// Tasks is the number of seeded tasks in the cache.
	Tasks int

	// QueriesPerReader is how many list queries each reader performs.
	QueriesPerReader int

	// Writers is the number of concurrent optimistic writers.
	Writers int

	// WritesPerWriter is how many create-and-queue cycles each writer runs.
	WritesPerWriter int

	// DBPath is the SQLite file to benchmark against.
	DBPath string
}

// DefaultConfig returns parameters that approximate a busy client.
func DefaultConfig() Config {
	return Config{
		Readers:          50,
		Tasks:            1000,
		QueriesPerReader: 20,
		Writers:          4,
		WritesPerWriter:  50,
	}
}

// LatencyStats captures latency percentiles for one operation class.
type LatencyStats struct {
	Min   time.Duration `json:"min"`
	P50   time.Duration `json:"p50"`
	Mean  time.Duration `json:"mean"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
	Count int           `json:"count"`
}

// Result captures all metrics from a benchmark run.
type Result struct {
	Config        Config        `json:"config"`
	Reads         LatencyStats  `json:"reads"`
	Writes        LatencyStats  `json:"writes"`
	ReadsPerSec   float64       `json:"reads_per_sec"`
	WritesPerSec  float64       `json:"writes_per_sec"`
	QueueDepth    int           `json:"queue_depth"`
	TotalDuration time.Duration `json:"total_duration"`
	Errors        int           `json:"errors"`
}

// Run seeds a cache and drives concurrent readers and writers against
// it, returning aggregate latency statistics.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	db, err := cache.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()
	if err := db.InitSchemaContext(ctx); err != nil {
		return nil, err
	}
	if err := seed(ctx, db, cfg.Tasks); err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		readTimes  []time.Duration
		writeTimes []time.Duration
		errCount   int
	)
	record := func(bucket *[]time.Duration, d time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errCount++
			return
		}
		*bucket = append(*bucket, d)
	}

	start := time.Now()
	var wg sync.WaitGroup

	for r := 0; r < cfg.Readers; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for q := 0; q < cfg.QueriesPerReader; q++ {
				filter := cache.TaskFilter{Limit: 100}
				if rng.Intn(2) == 0 {
					completed := rng.Intn(2) == 0
					filter.Completed = &completed
				}
				t0 := time.Now()
				_, err := db.ListTasks(ctx, filter)
				record(&readTimes, time.Since(t0), err)
			}
		}(int64(r))
	}

	for w := 0; w < cfg.Writers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < cfg.WritesPerWriter; i++ {
				t0 := time.Now()
				err := optimisticWrite(ctx, db, fmt.Sprintf("bench writer %d op %d", worker, i))
				record(&writeTimes, time.Since(t0), err)
			}
		}(w)
	}

	wg.Wait()
	elapsed := time.Since(start)

	queueDepth, err := db.QueueLen(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Config:        cfg,
		Reads:         computeStats(readTimes),
		Writes:        computeStats(writeTimes),
		QueueDepth:    queueDepth,
		TotalDuration: elapsed,
		Errors:        errCount,
	}
	secs := elapsed.Seconds()
	if secs > 0 {
		res.ReadsPerSec = float64(len(readTimes)) / secs
		res.WritesPerSec = float64(len(writeTimes)) / secs
	}
	return res, nil
}

// optimisticWrite performs the full local write path: temp id, cache
// upsert, queue append.
func optimisticWrite(ctx context.Context, db *cache.DB, title string) error {
	id, err := db.NextTempID(ctx, model.EntityTask)
	if err != nil {
		return err
	}
	task := &model.Task{
		Meta:     model.Meta{ID: id, LastUpdated: time.Now().UTC()},
		Title:    title,
		Priority: model.PriorityMedium,
		Tags:     []string{},
	}
	if err := db.PutTask(ctx, task); err != nil {
		return err
	}
	m, err := model.NewMutation(model.OpCreate, model.EntityTask, id, task)
	if err != nil {
		return err
	}
	_, err = db.Enqueue(ctx, m)
	return err
}

// seed populates the cache with synced tasks carrying a realistic
// spread of priorities and completion states.
func seed(ctx context.Context, db *cache.DB, n int) error {
	rng := rand.New(rand.NewSource(42))
	priorities := []string{model.PriorityLow, model.PriorityMedium, model.PriorityMedium, model.PriorityHigh}
	for i := 1; i <= n; i++ {
		task := &model.Task{
			Meta: model.Meta{
				ID:          int64(i),
				Synced:      true,
				LastUpdated: time.Now().UTC(),
			},
			Title:     fmt.Sprintf("seeded task %d", i),
			Priority:  priorities[rng.Intn(len(priorities))],
			Completed: rng.Float64() < 0.3,
			Tags:      []string{},
		}
		if err := db.PutTask(ctx, task); err != nil {
			return fmt.Errorf("failed to seed task %d: %w", i, err)
		}
	}
	return nil
}

func computeStats(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyStats{
		Min:   sorted[0],
		P50:   sorted[len(sorted)*50/100],
		Mean:  sum / time.Duration(len(sorted)),
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// Format renders the result as an aligned text report.
func (r *Result) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cache benchmark: %d readers x %d queries, %d writers x %d writes, %d seeded tasks\n",
		r.Config.Readers, r.Config.QueriesPerReader, r.Config.Writers, r.Config.WritesPerWriter, r.Config.Tasks)
	fmt.Fprintf(&b, "Total time: %v, errors: %d, queue depth after run: %d\n\n", r.TotalDuration.Round(time.Millisecond), r.Errors, r.QueueDepth)
	writeStats := func(name string, s LatencyStats, perSec float64) {
		fmt.Fprintf(&b, "%-7s %6d ops  %8.0f/s  min %-9v p50 %-9v p95 %-9v p99 %-9v max %v\n",
			name, s.Count, perSec, s.Min.Round(time.Microsecond), s.P50.Round(time.Microsecond),
			s.P95.Round(time.Microsecond), s.P99.Round(time.Microsecond), s.Max.Round(time.Microsecond))
	}
	writeStats("reads", r.Reads, r.ReadsPerSec)
	writeStats("writes", r.Writes, r.WritesPerSec)
	return b.String()
}
