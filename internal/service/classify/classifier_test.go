package classify_test

import (
	"errors"
	"testing"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/service/classify"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		signal string
		want   intake.Category
	}{
		{"I need a sales report", intake.Report},
		{"one-off analysis of churn numbers", intake.Report},
		{"reports", intake.Report},
		{"Can you build a new dashboard in Tableau?", intake.Dashboard},
		{"please change the KPI dashboard", intake.Dashboard},
		{"update the existing weekly report", intake.Update},
		{"We need to modify the pipeline export", intake.Update},
		{"update-request", intake.Update},
		{"hello there", intake.Unclassified},
		{"", intake.Unclassified},
		{"!!!", intake.Unclassified},
	}

	for _, tc := range cases {
		if got := classify.Classify(tc.signal); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.signal, got, tc.want)
		}
	}
}

func TestClassifyTieIsUnclassified(t *testing.T) {
	// "report" (2) against "existing" (2)
	if got := classify.Classify("existing report"); got != intake.Unclassified {
		t.Fatalf("expected tie to stay unclassified, got %q", got)
	}
}

func TestMust(t *testing.T) {
	if _, err := classify.Must("just browsing"); !errors.Is(err, classify.ErrUnclassified) {
		t.Fatalf("expected ErrUnclassified, got %v", err)
	}
	c, err := classify.Must("dashboard please")
	if err != nil || c != intake.Dashboard {
		t.Fatalf("Must = %q, %v", c, err)
	}
}
