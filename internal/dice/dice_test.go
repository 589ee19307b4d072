package dice

import (
	"errors"
	"strings"
	"testing"
)

func fixedRoller(values ...int) Roller {
	i := 0
	return func(faces int) int {
		v := values[i%len(values)]
		i++
		return v
	}
}

func TestResolveWithFixedOutcomes(t *testing.T) {
	r := NewResolver(fixedRoller(4, 5))

	res, err := r.Resolve("2d6+3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Total != 12 {
		t.Fatalf("expected total 12, got %d", res.Total)
	}
	if len(res.Outcomes) != 2 || res.Outcomes[0] != 4 || res.Outcomes[1] != 5 {
		t.Fatalf("unexpected outcomes: %v", res.Outcomes)
	}
	if got := res.Breakdown(); !strings.Contains(got, "4 + 5 +3 = 12") {
		t.Fatalf("unexpected breakdown: %q", got)
	}
	if got := res.Details(); got != "[4, 5]" {
		t.Fatalf("unexpected details: %q", got)
	}
}

func TestResolveTotalsAndBounds(t *testing.T) {
	r := NewResolver(nil)
	cases := []struct {
		expr     string
		count    int
		faces    int
		modifier int
	}{
		{"d20", 1, 20, 0},
		{"1d1", 1, 1, 0},
		{"4d8-2", 4, 8, -2},
		{"  3D6+10 ", 3, 6, 10},
		{"100d1000", 100, 1000, 0},
		{"2d6+0", 2, 6, 0},
	}

	for _, tc := range cases {
		for round := 0; round < 50; round++ {
			res, err := r.Resolve(tc.expr)
			if err != nil {
				t.Fatalf("%q: resolve: %v", tc.expr, err)
			}
			if len(res.Outcomes) != tc.count {
				t.Fatalf("%q: expected %d outcomes, got %d", tc.expr, tc.count, len(res.Outcomes))
			}
			sum := 0
			for _, v := range res.Outcomes {
				if v < 1 || v > tc.faces {
					t.Fatalf("%q: outcome %d outside [1,%d]", tc.expr, v, tc.faces)
				}
				sum += v
			}
			if res.Modifier != tc.modifier {
				t.Fatalf("%q: expected modifier %d, got %d", tc.expr, tc.modifier, res.Modifier)
			}
			if res.Total != sum+tc.modifier {
				t.Fatalf("%q: total %d != sum %d + modifier %d", tc.expr, res.Total, sum, tc.modifier)
			}
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, expr := range []string{
		"",
		"   ",
		"d0",
		"0d6",
		"2d",
		"xd6",
		"2d6x",
		"2d6+",
		"2d6+3+1",
		"2 d6",
		"d-6",
		"2d6*2",
		"99999999999999999999d6",
		"999999999999999999d6",
		"1001d6",
		"d1000001",
		"2d6+1000001",
		"2d6-1000001",
	} {
		if _, err := Parse(expr); !errors.Is(err, ErrInvalidExpression) {
			t.Fatalf("Parse(%q) error = %v, want %v", expr, err, ErrInvalidExpression)
		}
	}
}

func TestResolveAtLimits(t *testing.T) {
	r := NewResolver(func(faces int) int { return faces })

	res, err := r.Resolve("1000d1000000-1000000")
	if err != nil {
		t.Fatalf("resolve at limits: %v", err)
	}
	if len(res.Outcomes) != MaxCount || res.Total != MaxCount*MaxFaces-MaxModifier {
		t.Fatalf("unexpected result: %d outcomes, total %d", len(res.Outcomes), res.Total)
	}

	if _, err := r.Resolve("999999999999999999d6"); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("oversized count: err = %v, want %v", err, ErrInvalidExpression)
	}
}

func TestParseDefaultsCount(t *testing.T) {
	e, err := Parse("D12-1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.Count != 1 || e.Faces != 12 || e.Modifier != -1 {
		t.Fatalf("unexpected expression: %+v", e)
	}
	if e.String() != "1d12-1" {
		t.Fatalf("unexpected canonical form: %q", e.String())
	}
}

func TestBreakdownOmitsZeroModifier(t *testing.T) {
	res := NewResolver(fixedRoller(17)).Roll(Expression{Count: 1, Faces: 20})
	if got := res.Breakdown(); got != "17 = 17" {
		t.Fatalf("unexpected breakdown: %q", got)
	}

	neg := NewResolver(fixedRoller(2, 3)).Roll(Expression{Count: 2, Faces: 4, Modifier: -1})
	if got := neg.Breakdown(); got != "2 + 3 -1 = 4" {
		t.Fatalf("unexpected breakdown: %q", got)
	}
}
