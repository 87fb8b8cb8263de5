// Package experiment defines the canonical fact record describing a live
// experiment. The record is supplied by the caller (typically decoded from an
// experiment management API) and is never produced by this engine; specs
// override it, resolution reads it.
package experiment

import "time"

// Channel is a release channel.
type Channel string

const (
	ChannelNightly Channel = "nightly"
	ChannelBeta    Channel = "beta"
	ChannelRelease Channel = "release"
)

// Valid reports whether the channel is one of the known release channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelNightly, ChannelBeta, ChannelRelease:
		return true
	}
	return false
}

// Branch is a single experiment branch with its enrollment ratio.
type Branch struct {
	Slug  string `json:"slug"`
	Ratio int    `json:"ratio"`
}

// Experiment is the canonical description of an experiment as known by the
// upstream experiment management system. All fields are facts; overrides live
// in spec.ExperimentSpec.
type Experiment struct {
	// ExperimenterSlug is the slug assigned by the experiment console.
	ExperimenterSlug string `json:"experimenter_slug,omitempty"`

	// NormandySlug is the delivery slug used in telemetry.
	NormandySlug string `json:"normandy_slug,omitempty"`

	// Type is the experiment type (e.g. "pref", "addon", "v6").
	Type string `json:"type,omitempty"`

	// Status is "Live" while the experiment runs, "Complete" after.
	Status string `json:"status,omitempty"`

	Branches []Branch `json:"branches,omitempty"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// ProposedEnrollment is the planned enrollment period in days.
	ProposedEnrollment int `json:"proposed_enrollment,omitempty"`

	// ReferenceBranch is the slug of the control branch.
	ReferenceBranch string `json:"reference_branch,omitempty"`

	IsHighPopulation bool `json:"is_high_population,omitempty"`

	// AppName identifies the platform; shared definitions are scoped to it.
	AppName string `json:"app_name"`
	AppID   string `json:"app_id,omitempty"`

	// Outcomes lists slugs of outcome bundles attached to the experiment.
	Outcomes []string `json:"outcomes,omitempty"`

	EnrollmentEndDate  *time.Time `json:"enrollment_end_date,omitempty"`
	IsEnrollmentPaused bool       `json:"is_enrollment_paused,omitempty"`

	Channel   Channel `json:"channel,omitempty"`
	IsRollout bool    `json:"is_rollout,omitempty"`
}
