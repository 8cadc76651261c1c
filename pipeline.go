package keel

import "sync"

func task[T any](workersCount int, data []T, fn func(data T)) {
	if workersCount < 1 {
		workersCount = 1
	}

	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start, end := workerID*chunkSize, min((workerID+1)*chunkSize, dataSize)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(data[i])
			}
		}(start, end)
	}
	wg.Wait()
}

// StepAll advances independent simulators by dt on workers goroutines.
// errs[i] is the error of sims[i]. Simulators must not share anything but
// frozen material tables and shapes.
func StepAll(sims []*Simulator, dt float64, workers int) []error {
	type job struct {
		index int
		sim   *Simulator
	}

	jobs := make([]job, len(sims))
	for i, sim := range sims {
		jobs[i] = job{index: i, sim: sim}
	}

	errs := make([]error, len(sims))
	task(workers, jobs, func(j job) {
		_, errs[j.index] = j.sim.Step(dt)
	})

	return errs
}
