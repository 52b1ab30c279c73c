package refine

import (
	"sort"
	"sync"
	"time"
)

// IterationMetrics captures one generate+evaluate step.
type IterationMetrics struct {
	// Iteration is the iteration number (1-based)
	Iteration int

	// Score is the evaluator's score for this iteration's artifact
	Score int

	// MeetsCriteria mirrors the evaluator's flag
	MeetsCriteria bool

	// FeedbackItems is the number of feedback points returned
	FeedbackItems int

	// ArtifactBytes is the size of the generated artifact
	ArtifactBytes int

	// Duration is the time from the previous notice to this evaluation
	Duration time.Duration
}

// RunMetrics captures a whole invocation of Run.
type RunMetrics struct {
	// IterationsUsed is the number of generations performed
	IterationsUsed int

	// Outcome is the exit the loop took
	Outcome Outcome

	// InitialScore is the score of the first artifact
	InitialScore int

	// FinalScore is the score of the returned artifact
	FinalScore int

	// ScoreImprovement is FinalScore - InitialScore
	ScoreImprovement int

	// TotalDuration is the loop's elapsed time
	TotalDuration time.Duration

	// Iterations contains the per-iteration metrics
	Iterations []*IterationMetrics
}

// AggregateMetrics rolls up every run seen by a collector.
type AggregateMetrics struct {
	TotalRuns      int
	AcceptedRuns   int
	ExhaustedRuns  int
	ByOutcome      map[Outcome]int
	TotalIters     int
	MeanIterations float64
	P50Iterations  int
	P95Iterations  int

	// MeanFinalScore is the average score of returned artifacts
	MeanFinalScore float64

	// MeanScoreImprovement is the average first-to-last score delta
	MeanScoreImprovement float64

	TotalDuration time.Duration
}

// MetricsCollector is an Observer that keeps run metrics in memory.
//
// Notices carry no run identifier, so a collector tracks one in-flight run
// at a time. Share a collector across sequential runs, not concurrent ones.
type MetricsCollector struct {
	mu sync.Mutex

	runs []*RunMetrics

	current       []*IterationMetrics
	lastNotice    time.Time
	lastArtifactN int
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		runs: make([]*RunMetrics, 0),
	}
}

// OnGenerate implements Observer.
func (m *MetricsCollector) OnGenerate(iteration int, feedback []string, artifact string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iteration == 1 {
		m.current = nil
	}
	if m.lastNotice.IsZero() || iteration == 1 {
		m.lastNotice = time.Now()
	}
	m.lastArtifactN = len(artifact)
}

// OnEvaluate implements Observer.
func (m *MetricsCollector) OnEvaluate(iteration int, evaluation *Evaluation) {
	if evaluation == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var d time.Duration
	if !m.lastNotice.IsZero() {
		d = now.Sub(m.lastNotice)
	}
	m.lastNotice = now

	m.current = append(m.current, &IterationMetrics{
		Iteration:     iteration,
		Score:         evaluation.Score,
		MeetsCriteria: evaluation.MeetsCriteria,
		FeedbackItems: len(evaluation.Feedback),
		ArtifactBytes: m.lastArtifactN,
		Duration:      d,
	})
}

// OnComplete implements Observer.
func (m *MetricsCollector) OnComplete(result *Result) {
	if result == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rm := &RunMetrics{
		IterationsUsed: result.IterationsUsed,
		Outcome:        result.Outcome,
		TotalDuration:  result.ElapsedTime,
		Iterations:     m.current,
	}
	if result.FinalEvaluation != nil {
		rm.FinalScore = result.FinalEvaluation.Score
	}
	if len(result.Trail) > 0 && result.Trail[0].Evaluation != nil {
		rm.InitialScore = result.Trail[0].Evaluation.Score
	} else {
		rm.InitialScore = rm.FinalScore
	}
	rm.ScoreImprovement = rm.FinalScore - rm.InitialScore

	m.runs = append(m.runs, rm)
	m.current = nil
	m.lastNotice = time.Time{}
	m.lastArtifactN = 0
}

// Runs returns the collected run metrics.
func (m *MetricsCollector) Runs() []*RunMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RunMetrics, len(m.runs))
	copy(out, m.runs)
	return out
}

// Aggregate computes rolled-up statistics across all completed runs.
func (m *MetricsCollector) Aggregate() *AggregateMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := &AggregateMetrics{
		ByOutcome: make(map[Outcome]int),
	}
	if len(m.runs) == 0 {
		return agg
	}

	counts := make([]int, 0, len(m.runs))
	var scoreSum, improvementSum int
	for _, r := range m.runs {
		agg.TotalRuns++
		agg.TotalIters += r.IterationsUsed
		agg.TotalDuration += r.TotalDuration
		agg.ByOutcome[r.Outcome]++
		if r.Outcome.Accepted() {
			agg.AcceptedRuns++
		} else {
			agg.ExhaustedRuns++
		}
		scoreSum += r.FinalScore
		improvementSum += r.ScoreImprovement
		counts = append(counts, r.IterationsUsed)
	}

	n := float64(agg.TotalRuns)
	agg.MeanIterations = float64(agg.TotalIters) / n
	agg.MeanFinalScore = float64(scoreSum) / n
	agg.MeanScoreImprovement = float64(improvementSum) / n

	sort.Ints(counts)
	agg.P50Iterations = percentile(counts, 50)
	agg.P95Iterations = percentile(counts, 95)

	return agg
}

// percentile returns the Nth percentile of a sorted slice
func percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	index := (len(sorted) * p) / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
