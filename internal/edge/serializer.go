package edge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgecore/quantedge/internal/atomicio"
)

// wireEdge is the JSON shape of one registry entry. It omits the
// predicates themselves (EntryCondition/ExitCondition are Go closures,
// never serialized) and carries Definition only when one is present.
type wireEdge struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Regimes           []string    `json:"regimes,omitempty"`
	TimeHorizonMs     int64       `json:"timeHorizon"`
	ExpectedAdvantage Advantage   `json:"expectedAdvantage"`
	RiskProfile       string      `json:"riskProfile,omitempty"`
	DecayFunction     string      `json:"decayFunction,omitempty"`
	Status            Status      `json:"status"`
	Stats             Stats       `json:"stats"`
	Confidence        Confidence  `json:"confidence"`
	Definition        *Definition `json:"definition,omitempty"`
}

// File is the top-level shape of a serialized edge registry (the "Edge
// file" wire format, spec'd in §6).
type File struct {
	Version   int           `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Edges     []wireEdge    `json:"edges"`
	Stats     RegistryStats `json:"stats"`
}

const currentVersion = 1

// Serialize renders a registry into the wire File shape.
func Serialize(r *Registry) File {
	f := File{Version: currentVersion, Timestamp: time.Now(), Stats: r.GetStats()}
	for _, id := range r.order {
		ent := r.edges[id]
		e := ent.edge
		var regimes []string
		for reg := range e.Regimes {
			regimes = append(regimes, reg)
		}
		f.Edges = append(f.Edges, wireEdge{
			ID:                e.ID,
			Name:              e.Name,
			Regimes:           regimes,
			TimeHorizonMs:     e.TimeHorizonMs,
			ExpectedAdvantage: e.ExpectedAdvantage,
			RiskProfile:       e.RiskProfile,
			DecayFunction:     e.DecayFunction,
			Status:            e.Status,
			Stats:             e.Stats,
			Confidence:        e.Confidence,
			Definition:        ent.definition,
		})
	}
	return f
}

// WriteFile atomically persists a registry to path as JSON
// (temp file, fsync, rename).
func WriteFile(path string, r *Registry) error {
	f := Serialize(r)
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return atomicio.WriteFile(path, data, 0644)
}

// LoadFile parses a serialized File. Entries without a Definition are
// skipped with a warning — their predicates cannot be reconstructed and
// are never guessed.
func LoadFile(data []byte) (*Registry, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version != currentVersion {
		return nil, &UnknownVersionError{Version: f.Version}
	}

	reg := NewRegistry()
	for _, we := range f.Edges {
		if we.Definition == nil {
			log.Warn().Str("edge_id", we.ID).Msg("skipping edge with no definition; predicates cannot be reconstructed")
			continue
		}
		entryFn, exitFn := BuildPredicates(we.Definition.Pattern)

		regimeSet := make(map[string]bool, len(we.Regimes))
		for _, rg := range we.Regimes {
			regimeSet[rg] = true
		}

		e := &Edge{
			ID:                we.ID,
			Name:              we.Name,
			Regimes:           regimeSet,
			TimeHorizonMs:     we.TimeHorizonMs,
			ExpectedAdvantage: we.ExpectedAdvantage,
			RiskProfile:       we.RiskProfile,
			DecayFunction:     we.DecayFunction,
			EntryCondition:    entryFn,
			ExitCondition:     exitFn,
			// Persisted status/stats/confidence override the reconstructed
			// defaults rather than being recomputed.
			Status:     we.Status,
			Stats:      we.Stats,
			Confidence: we.Confidence,
		}
		reg.Register(e, we.Definition)
	}
	return reg, nil
}

// UnknownVersionError is fatal per the error-handling design: an
// unrecognized file version is not something the loader can skip past.
type UnknownVersionError struct {
	Version int
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("edge: unknown edge file version %d", e.Version)
}
