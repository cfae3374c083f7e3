package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warden-io/warden/model"
)

func TestValidateAndCompile(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test compile resolves step variants":   testCompileVariants,
		"test entry from start step":            testEntryExplicit,
		"test entry from unique root":           testEntryInferred,
		"test ambiguous entry rejected":         testEntryAmbiguous,
		"test duplicate step id rejected":       testDuplicateStepId,
		"test dangling edge rejected":           testDanglingEdge,
		"test cycle rejected":                   testCycleRejected,
		"test self loop rejected":               testSelfLoopRejected,
		"test unknown transform rejected":       testUnknownTransform,
		"test reachable count ignores orphans":  testReachableCount,
		"test failure edges count as reachable": testReachableFailureEdge,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func version(startStep string, steps ...model.Step) *model.WorkflowVersion {
	return &model.WorkflowVersion{
		WorkflowId: "wf-1",
		Workspace:  "ws-1",
		Version:    1,
		Name:       "test",
		StartStep:  startStep,
		Steps:      steps,
	}
}

func actionStep(id string, onSuccess string) model.Step {
	return model.Step{Id: id, Name: id, Kind: model.STEP_KIND_ACTION, Action: "noop", OnSuccess: onSuccess}
}

func testCompileVariants(t *testing.T) {
	v := version("a",
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email", OnSuccess: "b"},
		model.Step{Id: "b", Kind: model.STEP_KIND_TRANSFORM, Transform: "set", OnSuccess: "c"},
		model.Step{Id: "c", Kind: model.STEP_KIND_DELAY, DelaySeconds: 5},
	)
	require.NoError(t, Validate(v))
	fl, err := Compile(v)
	require.NoError(t, err)
	require.Equal(t, "a", fl.Entry)
	require.IsType(t, &ActionStep{}, fl.Steps["a"])
	require.IsType(t, &TransformStep{}, fl.Steps["b"])
	require.IsType(t, &DelayStep{}, fl.Steps["c"])
	require.Equal(t, "send-email", fl.Steps["a"].(*ActionStep).Action)
}

func testEntryExplicit(t *testing.T) {
	v := version("b", actionStep("a", ""), actionStep("b", "a"))
	fl, err := Compile(v)
	require.NoError(t, err)
	require.Equal(t, "b", fl.Entry)
}

func testEntryInferred(t *testing.T) {
	v := version("", actionStep("a", "b"), actionStep("b", ""))
	fl, err := Compile(v)
	require.NoError(t, err)
	require.Equal(t, "a", fl.Entry)
}

func testEntryAmbiguous(t *testing.T) {
	v := version("", actionStep("a", "c"), actionStep("b", "c"), actionStep("c", ""))
	err := Validate(v)
	require.Error(t, err)
}

func testDuplicateStepId(t *testing.T) {
	v := version("a", actionStep("a", ""), actionStep("a", ""))
	require.Error(t, Validate(v))
}

func testDanglingEdge(t *testing.T) {
	v := version("a", actionStep("a", "missing"))
	require.Error(t, Validate(v))
}

func testCycleRejected(t *testing.T) {
	v := version("a", actionStep("a", "b"), actionStep("b", "c"), actionStep("c", "a"))
	err := Validate(v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func testSelfLoopRejected(t *testing.T) {
	v := version("a", actionStep("a", "a"))
	err := Validate(v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func testUnknownTransform(t *testing.T) {
	v := version("a", model.Step{Id: "a", Kind: model.STEP_KIND_TRANSFORM, Transform: "eval"})
	require.Error(t, Validate(v))
}

func testReachableCount(t *testing.T) {
	v := version("a",
		actionStep("a", "b"),
		actionStep("b", ""),
		actionStep("orphan", ""),
	)
	fl, err := Compile(v)
	require.NoError(t, err)
	require.Equal(t, 2, fl.ReachableCount())
}

func testReachableFailureEdge(t *testing.T) {
	v := version("a",
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "noop", OnSuccess: "b", OnFailure: "c"},
		actionStep("b", ""),
		actionStep("c", ""),
	)
	fl, err := Compile(v)
	require.NoError(t, err)
	require.Equal(t, 3, fl.ReachableCount())
}
