package spec

import (
	"encoding/json"
	"time"

	"go.starlark.net/starlark"

	"github.com/experihub/experihub/pkg/experiment"
	"github.com/experihub/experihub/pkg/template"
)

const dateLayout = "2006-01-02"

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, NewInvalidError("invalid date %q: %v", s, err)
	}
	return &t, nil
}

// ExperimentConfiguration is a fully resolved experiment: the launcher's
// record combined with every configured override. Values are computed at
// construction; the configuration never changes afterwards.
type ExperimentConfiguration struct {
	spec           ExperimentSpec
	experiment     *experiment.Experiment
	startDate      *time.Time
	endDate        *time.Time
	enrollmentSQL  string
	segments       []*Segment
	exposureSignal *ExposureSignal
}

func newExperimentConfiguration(spec ExperimentSpec, exp *experiment.Experiment) (*ExperimentConfiguration, error) {
	conf := &ExperimentConfiguration{spec: spec, experiment: exp}
	start, err := parseDate(spec.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(spec.EndDate)
	if err != nil {
		return nil, err
	}
	conf.startDate = start
	conf.endDate = end
	return conf, nil
}

// computeEnrollmentQuery renders the configured enrollment query template.
// The template sees the configuration's derived values, so overridden
// dates are already in effect.
func (c *ExperimentConfiguration) computeEnrollmentQuery(cat Catalog) error {
	if c.spec.EnrollmentQuery == "" {
		return nil
	}
	q, err := cat.Env().Render(c.spec.EnrollmentQuery, map[string]starlark.Value{
		"experiment": c.templateValue(),
	})
	if err != nil {
		return err
	}
	c.enrollmentSQL = q
	return nil
}

// Experiment returns the underlying launcher record.
func (c *ExperimentConfiguration) Experiment() *experiment.Experiment {
	return c.experiment
}

// NormandySlug returns the launcher's normandy slug.
func (c *ExperimentConfiguration) NormandySlug() string {
	return c.experiment.NormandySlug
}

// ExperimenterSlug returns the launcher's experimenter slug.
func (c *ExperimentConfiguration) ExperimenterSlug() string {
	return c.experiment.ExperimenterSlug
}

// AppName returns the experiment's application name, which doubles as the
// catalog platform key.
func (c *ExperimentConfiguration) AppName() string {
	return c.experiment.AppName
}

// AppID returns the experiment's application id.
func (c *ExperimentConfiguration) AppID() string {
	return c.experiment.AppID
}

// StartDate returns the configured start date, falling back to the
// launcher's.
func (c *ExperimentConfiguration) StartDate() *time.Time {
	if c.startDate != nil {
		return c.startDate
	}
	return c.experiment.StartDate
}

// EndDate returns the configured end date, falling back to the launcher's.
func (c *ExperimentConfiguration) EndDate() *time.Time {
	if c.endDate != nil {
		return c.endDate
	}
	return c.experiment.EndDate
}

// Status returns the experiment status. An experiment whose effective end
// date has passed reports Complete regardless of the launcher's status.
func (c *ExperimentConfiguration) Status() string {
	if end := c.EndDate(); end != nil && end.Before(time.Now().UTC()) {
		return "Complete"
	}
	return c.experiment.Status
}

// ProposedEnrollment returns the enrollment length in days, preferring the
// configured enrollment period.
func (c *ExperimentConfiguration) ProposedEnrollment() int {
	if c.spec.EnrollmentPeriod != 0 {
		return c.spec.EnrollmentPeriod
	}
	return c.experiment.ProposedEnrollment
}

// EnrollmentEndDate returns the date enrollment closed: the launcher's
// explicit date when present, otherwise the start date plus the enrollment
// period.
func (c *ExperimentConfiguration) EnrollmentEndDate() *time.Time {
	if c.experiment.EnrollmentEndDate != nil {
		return c.experiment.EnrollmentEndDate
	}
	start := c.StartDate()
	if start == nil {
		return nil
	}
	end := start.AddDate(0, 0, c.ProposedEnrollment())
	return &end
}

// ReferenceBranch returns the control branch slug.
func (c *ExperimentConfiguration) ReferenceBranch() string {
	if c.spec.ReferenceBranch != "" {
		return c.spec.ReferenceBranch
	}
	if c.experiment.ReferenceBranch != "" {
		return c.experiment.ReferenceBranch
	}
	return "control"
}

// Branches returns the launcher's branch records.
func (c *ExperimentConfiguration) Branches() []experiment.Branch {
	return c.experiment.Branches
}

// EnrollmentQuery returns the rendered enrollment query, or the empty
// string when none is configured.
func (c *ExperimentConfiguration) EnrollmentQuery() string {
	return c.enrollmentSQL
}

// Segments returns the resolved segments in configuration order.
func (c *ExperimentConfiguration) Segments() []*Segment {
	return c.segments
}

// ExposureSignal returns the resolved exposure signal, or nil.
func (c *ExperimentConfiguration) ExposureSignal() *ExposureSignal {
	return c.exposureSignal
}

// Skip reports whether analysis is disabled for this experiment.
func (c *ExperimentConfiguration) Skip() bool {
	return c.spec.Skip
}

// IsPrivate reports whether results must be written to a restricted
// dataset.
func (c *ExperimentConfiguration) IsPrivate() bool {
	return c.spec.IsPrivate
}

// DatasetID returns the configured destination dataset.
func (c *ExperimentConfiguration) DatasetID() string {
	return c.spec.DatasetID
}

// IsRollout reports whether the launcher record is a rollout.
func (c *ExperimentConfiguration) IsRollout() bool {
	return c.experiment.IsRollout
}

// StartDateString returns the effective start date formatted for queries.
// Templates that need a start date fail with a no_start_date error when
// none is available.
func (c *ExperimentConfiguration) StartDateString() (string, error) {
	start := c.StartDate()
	if start == nil {
		return "", NewNoStartDateError(c.NormandySlug())
	}
	return start.Format(dateLayout), nil
}

// EndDateString returns the effective end date formatted for queries.
func (c *ExperimentConfiguration) EndDateString() (string, error) {
	end := c.EndDate()
	if end == nil {
		return "", NewInvalidError("%s -> experiment has no end date", c.NormandySlug())
	}
	return end.Format(dateLayout), nil
}

// LastEnrollmentDateString returns the enrollment end date formatted for
// queries.
func (c *ExperimentConfiguration) LastEnrollmentDateString() (string, error) {
	if _, err := c.StartDateString(); err != nil {
		return "", err
	}
	return c.EnrollmentEndDate().Format(dateLayout), nil
}

// templateValue exposes the configuration to expression templates as the
// `experiment` variable.
func (c *ExperimentConfiguration) templateValue() starlark.Value {
	return experimentValue{conf: c}
}

// experimentValue adapts an ExperimentConfiguration to a template value
// with lazy attributes. Attributes that cannot be computed, like
// start_date_str without a start date, fail the render with a typed error.
type experimentValue struct {
	conf *ExperimentConfiguration
}

var _ starlark.HasAttrs = experimentValue{}

func (v experimentValue) String() string        { return "experiment(" + v.conf.NormandySlug() + ")" }
func (v experimentValue) Type() string          { return "experiment" }
func (v experimentValue) Freeze()               {}
func (v experimentValue) Truth() starlark.Bool  { return starlark.True }
func (v experimentValue) Hash() (uint32, error) { return 0, template.ErrUnhashable }

func (v experimentValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "normandy_slug":
		return starlark.String(v.conf.NormandySlug()), nil
	case "experimenter_slug":
		return starlark.String(v.conf.ExperimenterSlug()), nil
	case "app_name":
		return starlark.String(v.conf.AppName()), nil
	case "app_id":
		return starlark.String(v.conf.AppID()), nil
	case "status":
		return starlark.String(v.conf.Status()), nil
	case "reference_branch":
		return starlark.String(v.conf.ReferenceBranch()), nil
	case "proposed_enrollment", "enrollment_period":
		return starlark.MakeInt(v.conf.ProposedEnrollment()), nil
	case "start_date_str":
		s, err := v.conf.StartDateString()
		if err != nil {
			return nil, err
		}
		return starlark.String(s), nil
	case "end_date_str":
		s, err := v.conf.EndDateString()
		if err != nil {
			return nil, err
		}
		return starlark.String(s), nil
	case "last_enrollment_date_str":
		s, err := v.conf.LastEnrollmentDateString()
		if err != nil {
			return nil, err
		}
		return starlark.String(s), nil
	}
	return nil, nil
}

func (v experimentValue) AttrNames() []string {
	return []string{
		"app_id",
		"app_name",
		"end_date_str",
		"enrollment_period",
		"experimenter_slug",
		"last_enrollment_date_str",
		"normandy_slug",
		"proposed_enrollment",
		"reference_branch",
		"start_date_str",
		"status",
	}
}

// MarshalJSON serializes the configuration with all derived values
// applied.
func (c *ExperimentConfiguration) MarshalJSON() ([]byte, error) {
	out := struct {
		NormandySlug     string              `json:"normandy_slug"`
		ExperimenterSlug string              `json:"experimenter_slug"`
		AppName          string              `json:"app_name"`
		AppID            string              `json:"app_id,omitempty"`
		Status           string              `json:"status"`
		StartDate        *time.Time          `json:"start_date,omitempty"`
		EndDate          *time.Time          `json:"end_date,omitempty"`
		EnrollmentEnd    *time.Time          `json:"enrollment_end_date,omitempty"`
		Enrollment       int                 `json:"proposed_enrollment"`
		ReferenceBranch  string              `json:"reference_branch"`
		Branches         []experiment.Branch `json:"branches,omitempty"`
		EnrollmentQuery  string              `json:"enrollment_query,omitempty"`
		Segments         []*Segment          `json:"segments,omitempty"`
		ExposureSignal   *ExposureSignal     `json:"exposure_signal,omitempty"`
		Skip             bool                `json:"skip"`
		IsPrivate        bool                `json:"is_private"`
		DatasetID        string              `json:"dataset_id,omitempty"`
		IsRollout        bool                `json:"is_rollout"`
	}{
		NormandySlug:     c.NormandySlug(),
		ExperimenterSlug: c.ExperimenterSlug(),
		AppName:          c.AppName(),
		AppID:            c.AppID(),
		Status:           c.Status(),
		StartDate:        c.StartDate(),
		EndDate:          c.EndDate(),
		EnrollmentEnd:    c.EnrollmentEndDate(),
		Enrollment:       c.ProposedEnrollment(),
		ReferenceBranch:  c.ReferenceBranch(),
		Branches:         c.Branches(),
		EnrollmentQuery:  c.EnrollmentQuery(),
		Segments:         c.Segments(),
		ExposureSignal:   c.ExposureSignal(),
		Skip:             c.Skip(),
		IsPrivate:        c.IsPrivate(),
		DatasetID:        c.DatasetID(),
		IsRollout:        c.IsRollout(),
	}
	return json.Marshal(out)
}
