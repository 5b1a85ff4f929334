package catalog

import "sort"

// densify sorts refs into display order and renumbers positions densely
// from 0. The -1 sentinel (and any negative position) sorts after all
// non-negative positions; ties break on author id for determinism.
// Duplicate author ids keep their first occurrence.
//
// ReplaceAuthors runs every input through densify so sentinels and gaps
// never propagate back into storage.
func densify(refs []AuthorRef) []AuthorRef {
	out := make([]AuthorRef, 0, len(refs))
	seen := make(map[int64]struct{}, len(refs))
	for _, r := range refs {
		if _, dup := seen[r.AuthorID]; dup {
			continue
		}
		seen[r.AuthorID] = struct{}{}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Position, out[j].Position
		si, sj := pi < 0, pj < 0
		if si != sj {
			return !si // ordered entries before sentinels
		}
		if pi != pj {
			return pi < pj
		}
		return out[i].AuthorID < out[j].AuthorID
	})

	for i := range out {
		out[i].Position = i
	}
	return out
}
