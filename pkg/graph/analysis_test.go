package graph_test

import (
	"testing"

	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_AcyclicBranching(t *testing.T) {
	t.Parallel()

	report, err := graph.Analyze(branchingSteps())
	require.NoError(t, err)

	assert.False(t, report.HasCycles)
	assert.Empty(t, report.BackReferences)
	assert.Empty(t, report.Dangling)
	assert.Empty(t, report.WeightIssues)
	assert.Equal(t, []string{"e"}, report.Unreachable)
}

func TestAnalyze_LoopBackIsReportedNotRejected(t *testing.T) {
	t.Parallel()

	steps := testutil.Sequence(
		testutil.CreateTestStep(testutil.WithID("a")),
		testutil.CreateTestStep(testutil.WithID("b"), testutil.AsBranch(
			testutil.PathToOrder(50, 1),
			testutil.PathToOrder(50, 3),
		)),
		testutil.CreateTestStep(testutil.WithID("c")),
	)

	compiled := graph.Compile(steps)
	assert.Contains(t, edgeIDs(compiled), "e-b-path-0-a")

	report, err := graph.Analyze(steps)
	require.NoError(t, err)

	assert.True(t, report.HasCycles)
	require.Len(t, report.BackReferences, 1)
	assert.Equal(t, "b", report.BackReferences[0].ClientID)
	assert.Equal(t, 0, report.BackReferences[0].PathIndex)
	assert.Empty(t, report.Unreachable)
}

func TestAnalyze_SelfReference(t *testing.T) {
	t.Parallel()

	steps := testutil.Sequence(
		testutil.CreateTestStep(testutil.WithID("a"), testutil.AsBranch(
			testutil.PathToOrder(50, 1),
			testutil.PathToOrder(50, 2),
		)),
		testutil.CreateTestStep(testutil.WithID("b")),
	)

	report, err := graph.Analyze(steps)
	require.NoError(t, err)

	assert.True(t, report.HasCycles)
	assert.Len(t, report.BackReferences, 1)
}

func TestAnalyze_DanglingAndWeights(t *testing.T) {
	t.Parallel()

	steps := testutil.Sequence(
		testutil.CreateTestStep(testutil.WithID("a"), testutil.AsBranch(
			testutil.PathToOrder(40, 2),
			testutil.PathToID(40, "removed-step"),
		)),
		testutil.CreateTestStep(testutil.WithID("b")),
	)

	report, err := graph.Analyze(steps)
	require.NoError(t, err)

	require.Len(t, report.Dangling, 1)
	assert.Equal(t, 1, report.Dangling[0].PathIndex)
	assert.Equal(t, "removed-step", report.Dangling[0].NextStepID)
	assert.Equal(t, []string{"a"}, report.WeightIssues)
	assert.False(t, report.HasCycles)
}

func TestAnalyze_DuplicateTargetsAreOneConnection(t *testing.T) {
	t.Parallel()

	steps := testutil.Sequence(
		testutil.CreateTestStep(testutil.WithID("a"), testutil.AsBranch(
			testutil.PathToOrder(50, 2),
			testutil.PathToOrder(50, 2),
		)),
		testutil.CreateTestStep(testutil.WithID("b")),
	)

	report, err := graph.Analyze(steps)
	require.NoError(t, err)
	assert.False(t, report.HasCycles)
	assert.Empty(t, report.Unreachable)
}
