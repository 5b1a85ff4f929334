// Package dedup finds author records that are case/whitespace variants of
// the same name and consolidates them.
//
// The schema's normalized-name unique index prevents new variants from
// being created, but databases migrated from before the constraint can
// still carry duplicates, and merge remains the operator tool for
// semantic duplicates the normalizer cannot see ("Bob Smith" vs
// "Robert Smith").
package dedup

import (
	"errors"
	"sort"

	"github.com/mcpress/chatbot/internal/author"
)

// Sentinel errors for merge operations. Checked with errors.Is.
var (
	// ErrAuthorNotFound indicates one or more referenced author ids do
	// not exist.
	ErrAuthorNotFound = errors.New("author not found")

	// ErrInvalidMerge indicates a malformed merge request (empty merge
	// list, or keep id listed among the merge ids).
	ErrInvalidMerge = errors.New("invalid merge request")
)

// Member is one author inside a duplicate group.
type Member struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SiteURL       string `json:"site_url,omitempty"`
	DocumentCount int    `json:"document_count"`
}

// Group is a set of authors sharing one canonical name.
type Group struct {
	CanonicalName     string   `json:"canonical_name"`
	TotalDocuments    int      `json:"total_documents"`
	RecommendedKeepID int64    `json:"recommended_keep_id"`
	Members           []Member `json:"members"`
}

// MergeResult reports what a merge did (or, in dry-run mode, would do).
type MergeResult struct {
	KeepID int64 `json:"keep_author_id"`
	DryRun bool  `json:"dry_run"`

	// ReassignedDocuments were linked to a merge author only; their
	// association now points at the keep author.
	ReassignedDocuments []int64 `json:"reassigned_documents"`

	// ConflictDocuments were linked to both the keep author and a merge
	// author; the merge-author association was deleted to preserve
	// (document, author) uniqueness.
	ConflictDocuments []int64 `json:"conflict_documents"`

	// AuthorsDeleted is the number of duplicate author rows removed.
	AuthorsDeleted int `json:"authors_deleted"`
}

// buildGroups partitions members by the canonical key of their name and
// returns the groups with more than one member, sorted by total document
// count descending (highest-impact merges first; ties by canonical name
// for a stable listing).
func buildGroups(members []Member) []Group {
	byKey := make(map[string][]Member)
	for _, m := range members {
		key := author.CanonicalKey(m.Name)
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], m)
	}

	var groups []Group
	for key, ms := range byKey {
		if len(ms) < 2 {
			continue
		}
		sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })

		total := 0
		for _, m := range ms {
			total += m.DocumentCount
		}
		groups = append(groups, Group{
			CanonicalName:     key,
			TotalDocuments:    total,
			RecommendedKeepID: pickKeep(ms),
			Members:           ms,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalDocuments != groups[j].TotalDocuments {
			return groups[i].TotalDocuments > groups[j].TotalDocuments
		}
		return groups[i].CanonicalName < groups[j].CanonicalName
	})
	return groups
}

// pickKeep chooses which member of a duplicate group survives a merge:
// a member with a site URL wins, then the highest document count, then
// the lowest id (the oldest record) for determinism.
func pickKeep(members []Member) int64 {
	best := members[0]
	for _, m := range members[1:] {
		if better(m, best) {
			best = m
		}
	}
	return best.ID
}

func better(a, b Member) bool {
	aURL, bURL := a.SiteURL != "", b.SiteURL != ""
	if aURL != bURL {
		return aURL
	}
	if a.DocumentCount != b.DocumentCount {
		return a.DocumentCount > b.DocumentCount
	}
	return a.ID < b.ID
}

// assoc is one (document, author, position) row involved in a merge.
type assoc struct {
	documentID int64
	authorID   int64
	position   int
}

// mergePlan is the computed set of mutations for one merge. A dry run
// returns the plan without applying it; a live run applies exactly this
// plan.
type mergePlan struct {
	// reassign: associations whose author_id becomes the keep id.
	reassign []assoc
	// remove: associations deleted because the document already has (or
	// gains) a link to the keep author.
	remove []assoc
}

// planMerge computes the mutation plan. keepDocs is the set of documents
// already linked to the keep author; merged holds every association of the
// merge authors.
//
// For each document, at most one association may be reassigned to the keep
// author: if the document is already linked to keep, every merge-author
// association is a conflict and is deleted; otherwise the best-positioned
// merge association (lowest position, ties by author id) is reassigned and
// any remaining merge associations for that document are deleted.
func planMerge(keepDocs map[int64]struct{}, merged []assoc) mergePlan {
	byDoc := make(map[int64][]assoc)
	for _, a := range merged {
		byDoc[a.documentID] = append(byDoc[a.documentID], a)
	}

	docIDs := make([]int64, 0, len(byDoc))
	for id := range byDoc {
		docIDs = append(docIDs, id)
	}
	sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })

	var plan mergePlan
	for _, docID := range docIDs {
		as := byDoc[docID]
		sort.Slice(as, func(i, j int) bool {
			pi, pj := as[i].position, as[j].position
			si, sj := pi < 0, pj < 0
			if si != sj {
				return !si
			}
			if pi != pj {
				return pi < pj
			}
			return as[i].authorID < as[j].authorID
		})

		if _, linked := keepDocs[docID]; linked {
			plan.remove = append(plan.remove, as...)
			continue
		}
		plan.reassign = append(plan.reassign, as[0])
		plan.remove = append(plan.remove, as[1:]...)
	}
	return plan
}

// documents returns the distinct document ids of a slice of associations,
// in ascending order.
func documents(as []assoc) []int64 {
	seen := make(map[int64]struct{}, len(as))
	ids := make([]int64, 0, len(as))
	for _, a := range as {
		if _, ok := seen[a.documentID]; ok {
			continue
		}
		seen[a.documentID] = struct{}{}
		ids = append(ids, a.documentID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
