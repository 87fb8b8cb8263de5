package spec

import (
	"github.com/experihub/experihub/pkg/experiment"
)

// ExperimentSpec carries experiment-scoped overrides: dates, enrollment,
// segments, and the exposure signal.
type ExperimentSpec struct {
	EnrollmentQuery  string                    `json:"enrollment_query,omitempty"`
	EnrollmentPeriod int                       `json:"enrollment_period,omitempty"`
	ReferenceBranch  string                    `json:"reference_branch,omitempty"`
	StartDate        string                    `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate          string                    `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Segments         []SegmentReference        `json:"segments,omitempty"`
	Skip             bool                      `json:"skip,omitempty"`
	IsPrivate        bool                      `json:"is_private,omitempty"`
	DatasetID        string                    `json:"dataset_id,omitempty"`
	ExposureSignal   *ExposureSignalDefinition `json:"exposure_signal,omitempty"`
}

func experimentSpecFromMap(m map[string]any, path string) (ExperimentSpec, error) {
	var s ExperimentSpec
	for key, v := range m {
		var err error
		switch key {
		case "enrollment_query":
			s.EnrollmentQuery, err = stringField(v, path+".enrollment_query")
		case "enrollment_period":
			s.EnrollmentPeriod, err = intField(v, path+".enrollment_period")
		case "reference_branch":
			s.ReferenceBranch, err = stringField(v, path+".reference_branch")
		case "start_date":
			s.StartDate, err = stringField(v, path+".start_date")
		case "end_date":
			s.EndDate, err = stringField(v, path+".end_date")
		case "segments":
			var names []string
			names, err = stringList(v, path+".segments")
			if err == nil {
				for _, name := range names {
					s.Segments = append(s.Segments, SegmentReference{Name: name})
				}
			}
		case "skip":
			s.Skip, err = boolField(v, path+".skip")
		case "is_private":
			s.IsPrivate, err = boolField(v, path+".is_private")
		case "dataset_id":
			s.DatasetID, err = stringField(v, path+".dataset_id")
		case "exposure_signal":
			var sub map[string]any
			sub, err = table(v, path+".exposure_signal")
			if err == nil {
				s.ExposureSignal, err = exposureSignalDefinitionFromMap(sub, path+".exposure_signal")
			}
		}
		if err != nil {
			return s, err
		}
	}
	if err := structErr(path, validate.Struct(s)); err != nil {
		return s, err
	}
	return s, nil
}

// Merge copies every set field of other into s. Segment reference lists
// are appended rather than replaced.
func (s *ExperimentSpec) Merge(other ExperimentSpec) {
	if other.EnrollmentQuery != "" {
		s.EnrollmentQuery = other.EnrollmentQuery
	}
	if other.EnrollmentPeriod != 0 {
		s.EnrollmentPeriod = other.EnrollmentPeriod
	}
	if other.ReferenceBranch != "" {
		s.ReferenceBranch = other.ReferenceBranch
	}
	if other.StartDate != "" {
		s.StartDate = other.StartDate
	}
	if other.EndDate != "" {
		s.EndDate = other.EndDate
	}
	s.Segments = append(s.Segments, other.Segments...)
	if other.Skip {
		s.Skip = true
	}
	if other.IsPrivate {
		s.IsPrivate = true
	}
	if other.DatasetID != "" {
		s.DatasetID = other.DatasetID
	}
	if other.ExposureSignal != nil {
		s.ExposureSignal = other.ExposureSignal.Clone()
	}
}

// Clone returns a deep copy of the spec.
func (s ExperimentSpec) Clone() ExperimentSpec {
	out := s
	out.Segments = append([]SegmentReference(nil), s.Segments...)
	if s.ExposureSignal != nil {
		out.ExposureSignal = s.ExposureSignal.Clone()
	}
	return out
}

// Resolve combines the spec with the launcher's experiment record into a
// fully populated configuration. The enrollment query template, segments,
// and the exposure signal are all expanded here, so a configuration never
// mutates afterwards.
func (s *ExperimentSpec) Resolve(sp *AnalysisSpec, exp *experiment.Experiment, cat Catalog) (*ExperimentConfiguration, error) {
	conf, err := newExperimentConfiguration(s.Clone(), exp)
	if err != nil {
		return nil, err
	}
	if err := conf.computeEnrollmentQuery(cat); err != nil {
		return nil, err
	}
	for _, ref := range s.Segments {
		seg, err := ref.Resolve(sp, conf, cat)
		if err != nil {
			return nil, err
		}
		conf.segments = append(conf.segments, seg)
	}
	if s.ExposureSignal != nil {
		signal, err := s.ExposureSignal.Resolve(sp, conf, cat)
		if err != nil {
			return nil, err
		}
		conf.exposureSignal = signal
	}
	return conf, nil
}
