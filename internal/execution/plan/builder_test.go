package plan

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/laue-dials/laue-go/internal/domain"
)

func TestBuildPlanFullPipeline(t *testing.T) {
	got, err := BuildPlan(Request{RunID: "run-1", Images: []string{" data/*.cbf ", ""}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.Stage{
		domain.StageImport,
		domain.StageFindSpots,
		domain.StageIndex,
		domain.StageRefine,
		domain.StageSplit,
	}
	if order := extractStages(got); !reflect.DeepEqual(order, want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	if len(got.Edges) != len(want)-1 {
		t.Fatalf("edges=%v", got.Edges)
	}
	for i, edge := range got.Edges {
		if edge.From != want[i] || edge.To != want[i+1] {
			t.Fatalf("edge[%d]=%+v", i, edge)
		}
	}
	if !reflect.DeepEqual(got.Images, []string{"data/*.cbf"}) {
		t.Fatalf("images=%v", got.Images)
	}
	if got.Last() != domain.StageSplit {
		t.Fatalf("Last()=%q", got.Last())
	}
}

func TestBuildPlanThrough(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []domain.Stage
	}{
		{
			name: "through index",
			req:  Request{RunID: "r", Images: []string{"a.cbf"}, Through: domain.StageIndex},
			want: []domain.Stage{domain.StageImport, domain.StageFindSpots, domain.StageIndex},
		},
		{
			name: "import only",
			req:  Request{RunID: "r", Images: []string{"a.cbf"}, Through: domain.StageImport},
			want: []domain.Stage{domain.StageImport},
		},
		{
			name: "skip split",
			req:  Request{RunID: "r", Images: []string{"a.cbf"}, SkipSplit: true},
			want: []domain.Stage{domain.StageImport, domain.StageFindSpots, domain.StageIndex, domain.StageRefine},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildPlan(tc.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if order := extractStages(got); !reflect.DeepEqual(order, tc.want) {
				t.Fatalf("expected order %v, got %v", tc.want, order)
			}
		})
	}
}

func TestBuildPlanValidation(t *testing.T) {
	_, err := BuildPlan(Request{Through: "integrate"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Issues) != 3 {
		t.Fatalf("issues=%v, want 3", verr.Issues)
	}
}

func TestPlanCodecRoundTrip(t *testing.T) {
	plan, err := BuildPlan(Request{RunID: "run-7", Images: []string{"a.cbf", "b.cbf"}, Through: domain.StageRefine})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := MarshalExecutionPlan(plan)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalExecutionPlan(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(plan, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := UnmarshalExecutionPlan([]byte(`{"steps":[{"stage":"integrate"}]}`)); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func extractStages(plan domain.ExecutionPlan) []domain.Stage {
	out := make([]domain.Stage, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		out = append(out, step.Stage)
	}
	return out
}
