package spec

import (
	"testing"
	"time"
)

func TestExperimentSpecMerge(t *testing.T) {
	base := ExperimentSpec{
		EnrollmentPeriod: 7,
		ReferenceBranch:  "control",
		StartDate:        "2020-01-01",
		Segments:         []SegmentReference{{Name: "regular_users"}},
	}
	other := ExperimentSpec{
		EnrollmentPeriod: 14,
		EndDate:          "2020-02-01",
		Segments:         []SegmentReference{{Name: "new_users"}},
		Skip:             true,
	}
	base.Merge(other)

	if base.EnrollmentPeriod != 14 {
		t.Errorf("enrollment period = %d, want the override to win", base.EnrollmentPeriod)
	}
	if base.ReferenceBranch != "control" {
		t.Errorf("reference branch = %q, want unset donor field ignored", base.ReferenceBranch)
	}
	if base.StartDate != "2020-01-01" || base.EndDate != "2020-02-01" {
		t.Errorf("dates = %q..%q", base.StartDate, base.EndDate)
	}
	if len(base.Segments) != 2 {
		t.Errorf("segments = %+v, want appended lists", base.Segments)
	}
	if !base.Skip {
		t.Error("skip should be sticky once set")
	}
}

func TestExperimentSpecFromMapRejectsBadDate(t *testing.T) {
	_, err := experimentSpecFromMap(map[string]any{
		"start_date": "January 1st",
	}, "experiment")
	if err == nil {
		t.Fatal("experimentSpecFromMap succeeded, want date validation error")
	}
	if !IsInvalid(err) {
		t.Errorf("error = %v, want invalid", err)
	}
}

func TestConfigurationDates(t *testing.T) {
	cat := testCatalog()

	t.Run("launcher dates by default", func(t *testing.T) {
		s := NewAnalysisSpec()
		conf, err := s.Experiment.Resolve(s, testExperiment(), cat)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got := conf.StartDate(); got == nil || !got.Equal(time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("start date = %v", got)
		}
		if got, err := conf.StartDateString(); err != nil || got != "2019-12-01" {
			t.Errorf("start date string = %q, %v", got, err)
		}
	})

	t.Run("overrides win", func(t *testing.T) {
		s := NewAnalysisSpec()
		s.Experiment.StartDate = "2020-01-10"
		s.Experiment.EnrollmentPeriod = 14
		conf, err := s.Experiment.Resolve(s, testExperiment(), cat)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got, _ := conf.StartDateString(); got != "2020-01-10" {
			t.Errorf("start date string = %q", got)
		}
		if conf.ProposedEnrollment() != 14 {
			t.Errorf("proposed enrollment = %d", conf.ProposedEnrollment())
		}
		// Enrollment end derives from the overridden start and period.
		if got, _ := conf.LastEnrollmentDateString(); got != "2020-01-24" {
			t.Errorf("last enrollment date = %q", got)
		}
	})

	t.Run("explicit enrollment end date wins", func(t *testing.T) {
		s := NewAnalysisSpec()
		exp := testExperiment()
		exp.EnrollmentEndDate = date(2019, time.December, 5)
		conf, err := s.Experiment.Resolve(s, exp, cat)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got, _ := conf.LastEnrollmentDateString(); got != "2019-12-05" {
			t.Errorf("last enrollment date = %q", got)
		}
	})

	t.Run("no start date", func(t *testing.T) {
		s := NewAnalysisSpec()
		exp := testExperiment()
		exp.StartDate = nil
		conf, err := s.Experiment.Resolve(s, exp, cat)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if conf.StartDate() != nil {
			t.Error("start date should be nil")
		}
		if _, err := conf.StartDateString(); !IsNoStartDate(err) {
			t.Errorf("error = %v, want no_start_date", err)
		}
		if _, err := conf.LastEnrollmentDateString(); !IsNoStartDate(err) {
			t.Errorf("error = %v, want no_start_date", err)
		}
	})
}

func TestConfigurationStatus(t *testing.T) {
	cat := testCatalog()
	s := NewAnalysisSpec()

	// End date in the past forces Complete.
	conf, err := s.Experiment.Resolve(s, testExperiment(), cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := conf.Status(); got != "Complete" {
		t.Errorf("status = %q, want Complete for an ended experiment", got)
	}

	// A live experiment without an end date keeps its status.
	exp := testExperiment()
	exp.EndDate = nil
	conf, err = s.Experiment.Resolve(s, exp, cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := conf.Status(); got != "Live" {
		t.Errorf("status = %q, want Live", got)
	}
}

func TestConfigurationReferenceBranch(t *testing.T) {
	cat := testCatalog()

	s := NewAnalysisSpec()
	conf, err := s.Experiment.Resolve(s, testExperiment(), cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := conf.ReferenceBranch(); got != "b" {
		t.Errorf("reference branch = %q, want launcher's", got)
	}

	s = NewAnalysisSpec()
	s.Experiment.ReferenceBranch = "a"
	conf, err = s.Experiment.Resolve(s, testExperiment(), cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := conf.ReferenceBranch(); got != "a" {
		t.Errorf("reference branch = %q, want override", got)
	}

	exp := testExperiment()
	exp.ReferenceBranch = ""
	s = NewAnalysisSpec()
	conf, err = s.Experiment.Resolve(s, exp, cat)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := conf.ReferenceBranch(); got != "control" {
		t.Errorf("reference branch = %q, want control fallback", got)
	}
}
