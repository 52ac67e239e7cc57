package dataset

import (
	"context"
	"fmt"

	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/flickr"
	"flickrharvest/pkg/logger"
)

// OwnerLookup resolves one owner's profile
type OwnerLookup interface {
	LookupOwner(ctx context.Context, ownerID string) (flickr.OwnerProfile, error)
}

// Enricher attaches owner hometowns with one lookup per distinct owner
type Enricher struct {
	Lookup OwnerLookup
	Logger logger.Logger
	// Progress receives a human readable line per step; optional
	Progress func(msg string)
}

// Enrich returns a copy of records with OwnerHometown filled where the
// owner publishes one. Lookup failures leave the field empty. Lookups stop
// early when ctx is done.
func (e *Enricher) Enrich(ctx context.Context, records []Record) []Record {
	log := e.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	var owners []string
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.Owner == "" {
			continue
		}
		if _, ok := seen[r.Owner]; !ok {
			seen[r.Owner] = struct{}{}
			owners = append(owners, r.Owner)
		}
	}
	e.say("looking up %d distinct owners", len(owners))

	hometowns := make(map[string]string, len(owners))
	failed := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		profile, err := e.Lookup.LookupOwner(ctx, owner)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failed++
			log.WithError(errs.Wrap(errs.ErrorTypeEnrichment, err, "owner lookup failed")).
				WithField("owner", owner).Warn("enrichment skipped for owner")
			continue
		}
		if profile.Hometown != "" {
			hometowns[owner] = profile.Hometown
		}
	}

	out := make([]Record, len(records))
	copy(out, records)
	for i := range out {
		if h, ok := hometowns[out[i].Owner]; ok {
			out[i].OwnerHometown = h
		}
	}

	log.InfoWithFields("enrichment finished", map[string]interface{}{
		"owners":    len(owners),
		"hometowns": len(hometowns),
		"failed":    failed,
	})
	e.say("enriched %d of %d owners with a hometown", len(hometowns), len(owners))
	return out
}

func (e *Enricher) say(format string, args ...interface{}) {
	if e.Progress != nil {
		e.Progress(fmt.Sprintf(format, args...))
	}
}
