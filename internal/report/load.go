package report

import (
	"sync"

	"github.com/signalnine/wptnightly/internal/result"
)

// artifactReaders bounds concurrent CSV parsing.
const artifactReaders = 4

type loaded struct {
	data *result.ArtifactData
	err  error
}

// readArtifacts parses paths with at most maxWorkers in flight. Results keep
// the order of paths.
func readArtifacts(maxWorkers int, paths []string) []loaded {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var wg sync.WaitGroup
	out := make([]loaded, len(paths))
	sem := make(chan struct{}, maxWorkers)

	for i, p := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p string) {
			defer wg.Done()
			defer func() { <-sem }()
			data, err := result.ReadArtifact(p)
			out[i] = loaded{data: data, err: err}
		}(i, p)
	}
	wg.Wait()
	return out
}
