package queue

import "github.com/mohammad-safakhou/cowrite/config"

const (
	SearchQueue     = "search"
	GenerationQueue = "generation"

	DefaultConcurrency = 5
)

// Queues groups the queues shared by the research pipeline and the HTTP
// handlers. Build one per process with NewSet and pass it down.
type Queues struct {
	Search     *Queue
	Generation *Queue
}

// NewSet builds the search and generation queues from cfg. Non-positive
// limits fall back to DefaultConcurrency.
func NewSet(cfg config.QueuesConfig, opts ...Option) *Queues {
	return &Queues{
		Search:     New(SearchQueue, orDefault(cfg.SearchConcurrency), opts...),
		Generation: New(GenerationQueue, orDefault(cfg.GenerationConcurrency), opts...),
	}
}

// NewUnboundedSet builds a Queues whose members never make work wait.
func NewUnboundedSet(opts ...Option) *Queues {
	return &Queues{
		Search:     Unbounded(SearchQueue, opts...),
		Generation: Unbounded(GenerationQueue, opts...),
	}
}

func orDefault(n int) int {
	if n <= 0 {
		return DefaultConcurrency
	}
	return n
}
