package leave

import (
	"context"
	"fmt"
	"log"
	"math/rand"
)

// pendingGrey is reserved for pending entries on the calendar and never
// assigned to a person.
const pendingGrey = "#808080"

// pickColor returns a random #rrggbb token not present in taken.
func pickColor(taken map[string]bool) string {
	for {
		c := fmt.Sprintf("#%06x", rand.Intn(0x1000000))
		if c != pendingGrey && !taken[c] {
			return c
		}
	}
}

// EventColor returns the calendar color for a request: the requester's own
// color once approved, grey while the request is still pending.
func EventColor(p *Person, status Status) string {
	if status == StatusPending || p.Color == "" {
		return pendingGrey
	}
	return p.Color
}

// AssignColor gives the person a unique calendar color. Purely cosmetic;
// failures here never block a lifecycle operation.
func AssignColor(ctx context.Context, store Store, p *Person) error {
	used, err := store.UsedColors(ctx)
	if err != nil {
		return err
	}
	taken := make(map[string]bool, len(used))
	for _, c := range used {
		taken[c] = true
	}
	p.Color = pickColor(taken)
	return nil
}

// BackfillColors assigns colors to any people created before colors existed.
// Runs once at startup.
func BackfillColors(ctx context.Context, store Store) error {
	people, err := store.ListPeople(ctx)
	if err != nil {
		return err
	}
	used, err := store.UsedColors(ctx)
	if err != nil {
		return err
	}
	taken := make(map[string]bool, len(used))
	for _, c := range used {
		taken[c] = true
	}

	var assigned int
	for i := range people {
		if people[i].Color != "" {
			continue
		}
		people[i].Color = pickColor(taken)
		taken[people[i].Color] = true
		if err := store.UpdatePerson(ctx, people[i]); err != nil {
			return err
		}
		assigned++
	}
	if assigned > 0 {
		log.Printf("[colors] backfilled %d uncolored people", assigned)
	}
	return nil
}
