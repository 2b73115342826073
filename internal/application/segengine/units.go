package segengine

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/voteops/segengine/internal/domain/repository"
)

// BuildUnits implements C2: group the in-scope families into atomic units.
// Each unit is indivisible; its id is the family id, its voter list is
// sorted for determinism, and its centroid is only set when the family has
// coordinates (families without them still count toward totals but cannot
// contribute to boundary/grid geometry).
func BuildUnits(ctx context.Context, repo repository.HierarchyRepository, boothIDs []uuid.UUID) ([]Unit, error) {
	families, err := repo.FindFamiliesByBoothIDs(ctx, boothIDs)
	if err != nil {
		return nil, wrapErr(KindInput, CodeNoUnits, "failed to load families", err)
	}
	if len(families) == 0 {
		return nil, ErrNoUnits
	}

	familyIDs := make([]uuid.UUID, 0, len(families))
	for _, f := range families {
		familyIDs = append(familyIDs, f.ID)
	}

	voters, err := repo.FindVotersByFamilyIDs(ctx, familyIDs)
	if err != nil {
		return nil, wrapErr(KindInput, CodeNoUnits, "failed to load voters", err)
	}

	votersByFamily := make(map[uuid.UUID][]uuid.UUID, len(families))
	for _, v := range voters {
		votersByFamily[v.FamilyID] = append(votersByFamily[v.FamilyID], v.ID)
	}
	for familyID, ids := range votersByFamily {
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		votersByFamily[familyID] = ids
	}

	units := make([]Unit, 0, len(families))
	for _, f := range families {
		unit := Unit{
			ID:         f.ID,
			VoterCount: f.MemberCount,
			VoterIDs:   votersByFamily[f.ID],
		}
		if f.Latitude != nil && f.Longitude != nil {
			unit.Centroid = orb.Point{*f.Longitude, *f.Latitude}
			unit.HasGeometry = true
		}
		units = append(units, unit)
	}

	return SortUnitsByID(units), nil
}
