package intake_test

import (
	"errors"
	"testing"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

var allPhases = []intake.Phase{
	intake.PhaseCollectingBasicInfo,
	intake.PhaseClassifying,
	intake.PhaseCollectingRequirements,
	intake.PhaseValidating,
	intake.PhasePersisting,
	intake.PhaseComplete,
	intake.PhaseFailed,
}

func TestCanTransitionTable(t *testing.T) {
	legal := map[intake.Transition]bool{
		{From: intake.PhaseCollectingBasicInfo, To: intake.PhaseClassifying}:    true,
		{From: intake.PhaseClassifying, To: intake.PhaseCollectingRequirements}: true,
		{From: intake.PhaseCollectingRequirements, To: intake.PhaseValidating}:  true,
		{From: intake.PhaseValidating, To: intake.PhasePersisting}:              true,
		{From: intake.PhaseValidating, To: intake.PhaseCollectingRequirements}:  true,
		{From: intake.PhasePersisting, To: intake.PhaseComplete}:                true,
	}

	for _, from := range allPhases {
		for _, to := range allPhases {
			want := legal[intake.Transition{From: from, To: to}]
			if to == intake.PhaseFailed {
				want = !from.Terminal()
			}
			if got := intake.CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestPhaseOrderAndTerminal(t *testing.T) {
	for i, p := range allPhases[:6] {
		if p.Order() != i {
			t.Fatalf("expected %s at position %d, got %d", p, i, p.Order())
		}
	}
	if intake.PhaseFailed.Order() != -1 {
		t.Fatalf("FAILED must be outside the forward order")
	}
	for _, p := range allPhases {
		want := p == intake.PhaseComplete || p == intake.PhaseFailed
		if p.Terminal() != want {
			t.Fatalf("Terminal(%s) = %v", p, p.Terminal())
		}
	}
}

func TestSessionAdvanceRejectsSkips(t *testing.T) {
	s := intake.NewSession("s1", fixedNow)

	if _, err := s.Advance(intake.PhaseCollectingRequirements); !errors.Is(err, intake.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if s.Phase != intake.PhaseCollectingBasicInfo {
		t.Fatalf("phase changed on rejected transition: %s", s.Phase)
	}

	tr, err := s.Advance(intake.PhaseClassifying)
	if err != nil {
		t.Fatalf("Advance returned error: %v", err)
	}
	if tr.String() != "COLLECTING_BASIC_INFO -> CLASSIFYING" {
		t.Fatalf("unexpected transition %s", tr)
	}
}

func TestSessionSetCategoryOnce(t *testing.T) {
	s := intake.NewSession("s1", fixedNow)

	if err := s.SetCategory(intake.Report); err != nil {
		t.Fatalf("SetCategory returned error: %v", err)
	}
	if s.Requirements.Category != intake.Report || s.Requirements.Fields == nil {
		t.Fatalf("requirements not initialised: %+v", s.Requirements)
	}

	s.Requirements.Fields["purpose"] = "x"
	if err := s.SetCategory(intake.Dashboard); !errors.Is(err, intake.ErrReclassification) {
		t.Fatalf("expected ErrReclassification, got %v", err)
	}
	if s.Category != intake.Report || s.Requirements.Fields.Text("purpose") != "x" {
		t.Fatal("rejected reclassification must leave the session untouched")
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := intake.NewSession("s1", fixedNow)
	s.BasicFields["name"] = "Ada"
	_ = s.SetCategory(intake.Report)
	s.Requirements.Fields["metrics"] = []string{"revenue"}

	cp := s.Clone()
	cp.BasicFields["name"] = "Grace"
	cp.Requirements.Fields.Items("metrics")[0] = "churn"

	if s.BasicFields.Text("name") != "Ada" {
		t.Fatal("clone shares basic fields")
	}
	if s.Requirements.Fields.Items("metrics")[0] != "revenue" {
		t.Fatal("clone shares requirement slices")
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]intake.Category{
		"report":         intake.Report,
		" Reports ":      intake.Report,
		"dashboard":      intake.Dashboard,
		"update-request": intake.Update,
		"updates":        intake.Update,
	}
	for raw, want := range cases {
		got, ok := intake.ParseCategory(raw)
		if !ok || got != want {
			t.Fatalf("ParseCategory(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := intake.ParseCategory("podcast"); ok {
		t.Fatal("unexpected category for podcast")
	}
}
