package edge

// entry pairs a live Edge with the definition it was reconstructed from
// (nil for edges created directly by code rather than by discovery/load).
type entry struct {
	edge       *Edge
	definition *Definition
}

// Registry is the process's single owner of edges; per the concurrency
// model it is meant to be driven by one orchestrator at a time.
type Registry struct {
	edges map[string]*entry
	order []string // insertion order, for deterministic iteration
}

func NewRegistry() *Registry {
	return &Registry{edges: make(map[string]*entry)}
}

// Register adds or replaces an edge, optionally with its definition.
func (r *Registry) Register(e *Edge, def *Definition) {
	if _, exists := r.edges[e.ID]; !exists {
		r.order = append(r.order, e.ID)
	}
	r.edges[e.ID] = &entry{edge: e, definition: def}
}

// Get returns the edge and its definition (nil if none), or ok=false.
func (r *Registry) Get(id string) (*Edge, *Definition, bool) {
	e, ok := r.edges[id]
	if !ok {
		return nil, nil, false
	}
	return e.edge, e.definition, true
}

// All returns every edge in registration order.
func (r *Registry) All() []*Edge {
	out := make([]*Edge, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.edges[id].edge)
	}
	return out
}

// GetActiveEdges evaluates entry conditions for every non-retired edge and
// returns those that are currently active, in registration order.
func (r *Registry) GetActiveEdges(features map[string]float64, regime string) []*Edge {
	var active []*Edge
	for _, id := range r.order {
		e := r.edges[id].edge
		if e.Status == StatusRetired {
			continue
		}
		if res := e.EvaluateEntry(features, regime); res.Active {
			active = append(active, e)
		}
	}
	return active
}

// RetireUnderperformingEdges sweeps every edge, retiring any that
// ShouldRetire reports true for, and returns their ids.
func (r *Registry) RetireUnderperformingEdges() []string {
	var retired []string
	for _, id := range r.order {
		e := r.edges[id].edge
		if e.Status == StatusRetired {
			continue
		}
		if e.ShouldRetire() {
			e.Status = StatusRetired
			retired = append(retired, id)
		}
	}
	return retired
}

// RegimeStats is the per-regime slice of the registry summary.
type RegimeStats struct {
	Count     int     `json:"count"`
	AvgHealth float64 `json:"avgHealth"`
}

// RegistryStats is the aggregate registry summary (distinct from the
// per-edge trade ledger, Stats).
type RegistryStats struct {
	Total          int                    `json:"total"`
	ByStatus       map[string]int         `json:"byStatus"`
	TotalTrades    int                    `json:"totalTrades"`
	AvgHealthScore float64                `json:"avgHealthScore"`
	ByRegime       map[string]RegimeStats `json:"byRegime"`
}

// regimeAnyLabel groups edges with an empty/nil Regimes set (active in any
// regime) under a single bucket, since they have no single regime label.
const regimeAnyLabel = "any"

func (r *Registry) GetStats() RegistryStats {
	s := RegistryStats{ByStatus: make(map[string]int), ByRegime: make(map[string]RegimeStats)}
	var healthSum float64
	healthByRegime := make(map[string]float64)
	countByRegime := make(map[string]int)

	for _, id := range r.order {
		e := r.edges[id].edge
		s.Total++
		s.ByStatus[string(e.Status)]++
		s.TotalTrades += e.Stats.Trades
		health := e.HealthScore()
		healthSum += health

		if len(e.Regimes) == 0 {
			countByRegime[regimeAnyLabel]++
			healthByRegime[regimeAnyLabel] += health
			continue
		}
		for regime := range e.Regimes {
			countByRegime[regime]++
			healthByRegime[regime] += health
		}
	}

	if s.Total > 0 {
		s.AvgHealthScore = healthSum / float64(s.Total)
	}
	for regime, count := range countByRegime {
		s.ByRegime[regime] = RegimeStats{Count: count, AvgHealth: healthByRegime[regime] / float64(count)}
	}
	return s
}
