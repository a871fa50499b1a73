package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoTrajectories = `
trajectory: a: {
	joints: ["x"]
	strategy: hold: {positions: [0]}
}
trajectory: b: {
	joints: ["y"]
	strategy: linear: {rates: [1]}
}
`

func compileSource(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

func TestCompileAllSourceOrder(t *testing.T) {
	specs, errs := CompileAll(compileSource(t, twoTrajectories), false)
	require.Empty(t, errs)
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "b", specs[1].Name)
}

func TestCompileAllNoTrajectoryField(t *testing.T) {
	specs, errs := CompileAll(compileSource(t, `other: 1`), false)
	assert.Empty(t, specs)
	assert.Empty(t, errs)
}

func TestCompileAllFailFast(t *testing.T) {
	src := `
trajectory: bad1: { strategy: hold: { positions: [0] } }
trajectory: bad2: { joints: ["a"] }
trajectory: good: { joints: ["a"], strategy: hold: { positions: [0] } }
`
	_, errs := CompileAll(compileSource(t, src), true)
	require.Len(t, errs, 1)

	specs, errs := CompileAll(compileSource(t, src), false)
	require.Len(t, errs, 2)
	require.Len(t, specs, 1)

	var te *TrajectoryError
	require.ErrorAs(t, errs[1], &te)
	assert.Equal(t, "bad2", te.Label)
	var ce *CompileError
	require.ErrorAs(t, errs[1], &ce)
	assert.Equal(t, "strategy", ce.Field)
	assert.Contains(t, errs[0].Error(), "trajectory.bad1: ")
}

func TestSelect(t *testing.T) {
	specs, errs := CompileAll(compileSource(t, twoTrajectories), true)
	require.Empty(t, errs)

	got, err := Select(specs, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)

	got, err = Select(specs[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	tests := []struct {
		name    string
		specs   int
		want    string
		message string
	}{
		{"ambiguous", 2, "", "2 trajectories defined, choose one: [a b]"},
		{"unknown", 2, "c", `no trajectory named "c", have [a b]`},
		{"none", 0, "", "no trajectory defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Select(specs[:tt.specs], tt.want)
			var se *SelectError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestPick(t *testing.T) {
	spec, err := Pick(compileSource(t, twoTrajectories), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, spec.Joints)

	_, err = Pick(compileSource(t, `
trajectory: bad: {
	joints: ["x", "y"]
	strategy: hold: {positions: [0]}
}
`), "")
	var ie *InvalidError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "bad", ie.Name)
	assert.Equal(t, ErrVectorLength, ie.Problems[0].Code)
	assert.Contains(t, err.Error(), "trajectory bad: ")
}
