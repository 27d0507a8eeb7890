package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultFreshnessHorizon is how long a job is considered fresh since it
// was last observed, absent an explicit expiry.
const DefaultFreshnessHorizon = 7 * 24 * time.Hour

// Job is a normalized job posting. It is a leaf type: it imports nothing
// from matcher, dedup, or parser, so those packages can depend on it
// without creating an import cycle.
type Job struct {
	ID               string
	Title            string
	Company          string
	URL              string
	Source           string
	Location         string
	Salary           string
	JobType          string
	ExperienceLevel  string
	IsRemote         bool
	Description      string
	Skills           []string
	PostedAt         time.Time
	LastSeen         time.Time
	Expires          time.Time
}

// NewJob builds a Job, validating the required fields per the data
// model invariant: title and company non-empty after trimming, and url
// syntactically valid when present.
func NewJob(id, title, company, rawURL, source string) (*Job, error) {
	title = strings.TrimSpace(title)
	company = strings.TrimSpace(company)

	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("job id must not be empty")
	}
	if title == "" {
		return nil, fmt.Errorf("job title must not be empty")
	}
	if company == "" {
		return nil, fmt.Errorf("job company must not be empty")
	}
	if rawURL != "" {
		if _, err := url.Parse(rawURL); err != nil {
			return nil, fmt.Errorf("job url %q is not a valid URL: %w", rawURL, err)
		}
	}

	return &Job{
		ID:       id,
		Title:    title,
		Company:  company,
		URL:      rawURL,
		Source:   source,
		LastSeen: time.Now(),
	}, nil
}

// IsExpired reports whether the job is stale per the freshness invariant:
// an explicit Expires in the past always wins; otherwise LastSeen age is
// checked against maxAge, falling back to PostedAt when LastSeen is zero.
func (j *Job) IsExpired(maxAge time.Duration) bool {
	now := time.Now()

	if !j.Expires.IsZero() {
		return j.Expires.Before(now)
	}
	if !j.LastSeen.IsZero() {
		return now.Sub(j.LastSeen) > maxAge
	}
	if !j.PostedAt.IsZero() {
		return now.Sub(j.PostedAt) > maxAge
	}
	return false
}

// Touch refreshes LastSeen on re-observation, the only mutation a Job
// undergoes after it leaves the parsing stage.
func (j *Job) Touch() {
	j.LastSeen = time.Now()
}
