package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/ramkansal/fightgraph/pkg/plugin"
)

// resolveOpponent finds the stored fighter a bout row refers to: exact
// name first, then a guarded substring match, and otherwise a new
// placeholder fighter.
func (r *Reconciler) resolveOpponent(ctx context.Context, fighter *plugin.Fighter, b plugin.BoutRecord) (id int64, placeholder bool, err error) {
	name := strings.Join(strings.Fields(b.OpponentName), " ")
	key := plugin.NameKey(name)

	if id, ok := r.ids.Get(key); ok {
		return id, false, nil
	}

	exact, err := r.store.FindFighterByName(ctx, name)
	if err != nil {
		return 0, false, fmt.Errorf("look up opponent %q: %w", name, err)
	}
	if exact != nil {
		r.ids.Add(key, exact.ID)
		return exact.ID, false, nil
	}

	if len([]rune(key)) >= r.opts.MinFragmentLen {
		candidates, err := r.store.FindFightersByNameFragment(ctx, name)
		if err != nil {
			return 0, false, fmt.Errorf("search opponent %q: %w", name, err)
		}
		if match := r.pickCandidate(name, fighter, candidates); match != nil {
			r.logger.Debug("opponent matched by substring",
				"opponent", name,
				"matched", match.Name,
				"id", match.ID,
			)
			return match.ID, false, nil
		}
	}

	now := r.now()
	p := &plugin.Fighter{
		Name:        name,
		WeightClass: fighter.WeightClass,
		SourceURL:   b.OpponentURL,
		Placeholder: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.CreateFighter(ctx, p); err != nil {
		return 0, false, fmt.Errorf("create placeholder %q: %w", name, err)
	}
	r.ids.Add(key, p.ID)
	return p.ID, true, nil
}

// pickCandidate narrows substring matches. Candidates in a different
// weight class than the fighter are dropped; a single survivor is taken,
// several are tie-broken by Jaro-Winkler similarity and only a unique best
// score above the threshold is accepted.
func (r *Reconciler) pickCandidate(name string, fighter *plugin.Fighter, candidates []plugin.Fighter) *plugin.Fighter {
	var compatible []plugin.Fighter
	for _, c := range candidates {
		if c.ID == fighter.ID {
			continue
		}
		if fighter.WeightClass != "" && c.WeightClass != "" && !strings.EqualFold(fighter.WeightClass, c.WeightClass) {
			continue
		}
		compatible = append(compatible, c)
	}

	switch len(compatible) {
	case 0:
		return nil
	case 1:
		return &compatible[0]
	}

	lower := strings.ToLower(name)
	best := -1
	bestScore := 0.0
	tied := false
	for i, c := range compatible {
		score := matchr.JaroWinkler(lower, strings.ToLower(c.Name), false)
		switch {
		case score > bestScore:
			best, bestScore, tied = i, score, false
		case score == bestScore:
			tied = true
		}
	}
	if best < 0 || tied || bestScore < r.opts.SimilarityThreshold {
		return nil
	}
	return &compatible[best]
}
