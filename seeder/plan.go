package seeder

import "github.com/ddevcap/movie-catalog/config"

// DefaultTerms are the search terms used when SEED_TERMS is not set.
// Order matters: movies are inserted term by term.
var DefaultTerms = []string{
	"love", "war", "star", "man", "night",
	"city", "king", "dead", "day", "life",
}

const (
	defaultPageCap   = 15
	defaultTarget    = 100
	defaultBatchSize = 10
)

// Plan bounds one seeding run.
type Plan struct {
	Terms     []string
	PageCap   int
	Target    int
	BatchSize int
}

// PlanFromConfig builds a plan from the SEED_* settings, falling back to
// DefaultTerms when no terms are configured.
func PlanFromConfig(cfg config.Config) Plan {
	p := Plan{
		Terms:     cfg.SeedTerms,
		PageCap:   cfg.SeedPageCap,
		Target:    cfg.SeedTarget,
		BatchSize: cfg.SeedBatchSize,
	}
	if len(p.Terms) == 0 {
		p.Terms = DefaultTerms
	}
	return p
}

// DefaultPlan is the plan used when nothing is configured.
func DefaultPlan() Plan {
	return Plan{
		Terms:     DefaultTerms,
		PageCap:   defaultPageCap,
		Target:    defaultTarget,
		BatchSize: defaultBatchSize,
	}
}

// Cursor is the position of a run: the term being searched, the next page
// to request for it, and how many movies have been staged so far.
type Cursor struct {
	Term        int
	Page        int
	Accumulated int
}

// Start returns the cursor of a fresh run.
func (p Plan) Start() Cursor {
	return Cursor{Term: 0, Page: 1}
}

// Done reports whether the run at c has nothing left to do: the target is
// reached or every term has been paged through.
func (p Plan) Done(c Cursor) bool {
	return c.Accumulated >= p.Target || c.Term >= len(p.Terms) || p.PageCap <= 0
}

// Advance returns the cursor after a page that staged added movies.
// exhausted means the term has no further pages, so the next term starts.
// The page cap moves to the next term the same way.
func (p Plan) Advance(c Cursor, added int, exhausted bool) Cursor {
	c.Accumulated += added
	if exhausted || c.Page >= p.PageCap {
		c.Term++
		c.Page = 1
		return c
	}
	c.Page++
	return c
}

// room returns how many more movies the run at c may stage.
func (p Plan) room(c Cursor) int {
	if n := p.Target - c.Accumulated; n > 0 {
		return n
	}
	return 0
}
