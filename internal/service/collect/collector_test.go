package collect_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
	"github.com/zhouzirui/z-intake/backend/internal/service/collect"
)

func TestBasicInfoAcrossTwoTurns(t *testing.T) {
	c := collect.NewBasicInfo(nil)
	questions := questionsByName(c.RequiredSchema())

	first := c.Collect(intake.Fields{"name": "Ada Lovelace", "role": "Analyst"}, intake.Fields{})
	require.False(t, first.Ready)
	require.Equal(t, []string{"department", "timeline"}, first.Result.Missing)
	require.NotContains(t, first.Prompt, questions["name"])
	require.NotContains(t, first.Prompt, questions["role"])
	require.Contains(t, first.Prompt, questions["department"])
	require.Contains(t, first.Prompt, questions["timeline"])

	second := c.Collect(intake.Fields{"department": "Finance", "timeline": "next Friday"}, first.Fields)
	require.True(t, second.Ready)
	require.True(t, second.Result.Complete())
	require.Empty(t, second.Prompt)
	require.Equal(t, "Ada Lovelace", second.Fields.Text("name"))
}

func TestCollectKeepsValidValueOverInvalidDelta(t *testing.T) {
	c := collect.NewBasicInfo(nil)
	current := intake.Fields{"name": "Ada Lovelace"}

	out := c.Collect(intake.Fields{"name": "A"}, current)

	require.Equal(t, "Ada Lovelace", out.Fields.Text("name"))
	require.Equal(t, "at least 2 characters required", out.Rejected["name"])
	require.Contains(t, out.Prompt, "kept your earlier answer")
}

func TestCollectFlagsInvalidValue(t *testing.T) {
	c := collect.NewReport(nil)
	current := intake.Fields{
		"purpose":       "Quarterly revenue review",
		"data_sources":  []string{"CRM"},
		"time_period":   "Q1",
		"output_format": "PDF",
		"audience":      "Finance",
	}

	out := c.Collect(intake.Fields{"metrics": ""}, current)

	require.True(t, out.Ready, "nothing is missing, the invalid value is left to validation")
	require.False(t, out.Result.Complete())
	require.Equal(t, map[string]string{"metrics": "non-empty set required"}, out.Result.Invalid)

	lines := strings.Split(out.Prompt, "\n")
	require.Len(t, lines, 2, "prompt should ask only for metrics: %q", out.Prompt)
	require.Contains(t, lines[1], "metrics")
}

func TestCollectDropsUnknownKeysAndDoesNotMutate(t *testing.T) {
	c := collect.NewDashboard(nil)
	current := intake.Fields{"dashboard_name": "Pipeline"}
	before := current.Clone()

	out := c.Collect(intake.Fields{"metrics": "revenue", "refresh_frequency": "Daily"}, current)

	require.Equal(t, []string{"metrics"}, out.Dropped)
	require.Equal(t, "daily", out.Fields.Text("refresh_frequency"))
	if diff := cmp.Diff(before, current); diff != "" {
		t.Fatalf("current was modified (-before +after):\n%s", diff)
	}
}

func TestForCategory(t *testing.T) {
	for _, c := range intake.Categories() {
		coll, err := collect.ForCategory(c, nil)
		require.NoError(t, err)
		s, _ := schema.Lookup(c)
		require.Equal(t, s.Names(), coll.RequiredSchema().Names())
		require.NotEmpty(t, collect.Intro(coll))
	}

	_, err := collect.ForCategory(intake.Unclassified, nil)
	require.ErrorIs(t, err, schema.ErrUnknownCategory)
	require.Len(t, collect.Table(nil), 3)
}

func TestMergeLawProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		category := rapid.SampledFrom(intake.Categories()).Draw(rt, "category")
		c, err := collect.ForCategory(category, nil)
		if err != nil {
			rt.Fatalf("ForCategory: %v", err)
		}
		s := c.RequiredSchema()

		all := intake.Fields{}
		for _, f := range s.Fields {
			if !rapid.Bool().Draw(rt, "include_"+f.Name) {
				continue
			}
			all[f.Name] = validValue(rt, f)
		}

		names := rapid.Permutation(all.Keys()).Draw(rt, "order")
		turns := 1
		if len(names) > 1 {
			turns = rapid.IntRange(1, len(names)).Draw(rt, "turns")
		}

		merged := intake.Fields{}
		for i := 0; i < turns; i++ {
			delta := intake.Fields{}
			for j := i; j < len(names); j += turns {
				delta[names[j]] = all[names[j]]
			}
			merged = c.Collect(delta, merged).Fields
		}

		oneShot := c.Collect(all, intake.Fields{}).Fields
		if diff := cmp.Diff(oneShot, merged); diff != "" {
			rt.Fatalf("merge law violated (-one shot +%d turns):\n%s", turns, diff)
		}

		// a valid field is never asked for again
		prompt := c.Collect(intake.Fields{}, merged).Prompt
		for name := range merged {
			f, _ := s.Field(name)
			if strings.Contains(prompt, f.Question) {
				rt.Fatalf("prompt re-asks valid field %s: %q", name, prompt)
			}
		}
	})
}

func validValue(rt *rapid.T, f schema.Field) any {
	switch f.Kind {
	case schema.KindSet:
		return rapid.SliceOfN(rapid.StringMatching(`[a-z]{2,8}`), 1, 3).Draw(rt, f.Name)
	case schema.KindEnum:
		return rapid.SampledFrom(f.Options).Draw(rt, f.Name)
	default:
		return rapid.StringMatching(`[A-Za-z]{3,12}`).Draw(rt, f.Name)
	}
}

func questionsByName(s schema.Schema) map[string]string {
	out := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Question
	}
	return out
}
