package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Digest returns a hex SHA-256 fingerprint of the whole world: every
// definition in order, then every placement sorted by id. Grid contents
// are fully determined by the placements, so they are not re-walked.
// Two worlds built by the same operation sequence digest identically,
// which is what replay verification compares.
func (w *World) Digest() string {
	var b strings.Builder
	for _, e := range w.entities[1:] {
		fmt.Fprintf(&b, "e|%d|%s|%s|%t", e.id, e.name, e.kind, e.solid)
		if e.grid != nil {
			fmt.Fprintf(&b, "|%dx%d", e.grid.w, e.grid.h)
		}
		if e.kind == KindAlias {
			fmt.Fprintf(&b, "|>%s", e.target)
		}
		b.WriteByte('\n')
	}
	ids := make([]EntityID, 0, len(w.placed))
	for id := range w.placed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		pl := w.placed[id]
		fmt.Fprintf(&b, "p|%d|%d|%d,%d\n", id, pl.Container, pl.Cell.X, pl.Cell.Y)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
