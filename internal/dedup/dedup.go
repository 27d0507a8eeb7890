// Package dedup implements fuzzy duplicate detection over a batch of
// normalized job postings, collapsing near-identical listings the same
// source (or several sources) emitted more than once.
package dedup

import "github.com/jobradar/jobradar/internal/types"

// DefaultThreshold is the similarity score at or above which two jobs
// with the same normalized company are considered duplicates.
const DefaultThreshold = 0.90

// Deduplicator keeps only the first occurrence of each fuzzy-duplicate
// class in an ordered job sequence. It holds no mutable state between
// calls, so one instance is safe to reuse or share.
type Deduplicator struct {
	threshold float64
}

// NewDeduplicator builds a Deduplicator at the given similarity
// threshold. A non-positive threshold falls back to DefaultThreshold.
func NewDeduplicator(threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// seenJob is one already-kept job's cached normalized title, scoped to
// a single company bucket.
type seenJob struct {
	normalizedTitle string
}

// Deduplicate returns the subsequence of jobs keeping only the first
// occurrence of each fuzzy-duplicate class, preserving input order.
//
// Two jobs can only be duplicates if their normalized companies match
// exactly, so jobs are bucketed by normalized company before the
// pairwise scan — this changes nothing observable (the naive O(n²)
// scan would score every cross-company pair at zero anyway) but keeps
// the cost down for large batches spanning many distinct companies.
func (d *Deduplicator) Deduplicate(jobs []*types.Job) []*types.Job {
	buckets := make(map[string][]seenJob)
	result := make([]*types.Job, 0, len(jobs))

	for _, job := range jobs {
		company := normalizeCompany(job.Company)
		title := normalizeTitle(job.Title)

		bucket := buckets[company]
		duplicate := false
		for _, seen := range bucket {
			if similarityRatio(title, seen.normalizedTitle) >= d.threshold {
				duplicate = true
				break
			}
		}

		if !duplicate {
			result = append(result, job)
			buckets[company] = append(bucket, seenJob{normalizedTitle: title})
		}
	}

	return result
}
