package persist

// writeTask asks the writer to make a channel's buffer durable up to end.
// Tasks are descriptors over shared channel state, not data carriers: the
// line content is collected from the buffer at execution time, so a task
// whose range was already covered by a later write degrades to a no-op.
type writeTask struct {
	ch  Channel
	gen uint64
	// start and end delimit the delta range the task was created for.
	// start is kept for coalescing; execution covers everything unwritten
	// below end.
	start int
	end   int
	// force marks a task carrying a delivery obligation. Forced tasks are
	// never dropped.
	force bool
}

// coalesce merges tasks that target the same channel and generation into one
// task spanning the minimum start and maximum end, keeping the force flag if
// any merged task carried it. First-appearance order is preserved, so writes
// for a channel stay in non-decreasing index order.
func coalesce(tasks []writeTask) []writeTask {
	if len(tasks) <= 1 {
		return tasks
	}

	type taskKey struct {
		ch  Channel
		gen uint64
	}

	merged := make([]writeTask, 0, len(tasks))
	index := make(map[taskKey]int, len(tasks))
	for _, t := range tasks {
		k := taskKey{ch: t.ch, gen: t.gen}
		j, ok := index[k]
		if !ok {
			index[k] = len(merged)
			merged = append(merged, t)
			continue
		}
		if t.start < merged[j].start {
			merged[j].start = t.start
		}
		if t.end > merged[j].end {
			merged[j].end = t.end
		}
		merged[j].force = merged[j].force || t.force
	}
	return merged
}
