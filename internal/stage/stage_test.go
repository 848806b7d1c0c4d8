package stage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input string
		want  Stage
	}{
		"exact identifier":        {input: "architecture_design", want: ArchitectureDesign},
		"upper case":              {input: "BACKEND_DEVELOPMENT", want: BackendDevelopment},
		"surrounding whitespace":  {input: "  testing \n", want: Testing},
		"hyphenated":              {input: "github-deployment", want: GithubDeployment},
		"first stage":             {input: "initialization", want: Initialization},
		"last stage":              {input: "completion", want: Completion},
		"unknown":                 {input: "not_a_real_stage", want: Unrecognized},
		"empty":                   {input: "", want: Unrecognized},
		"unrecognized label text": {input: "unrecognized", want: Unrecognized},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestAll_FixedOrder(t *testing.T) {
	t.Parallel()

	want := []string{
		"initialization",
		"requirements_analysis",
		"architecture_design",
		"frontend_development",
		"backend_development",
		"integration",
		"security_scanning",
		"testing",
		"deployment_setup",
		"github_deployment",
		"backlog_publishing",
		"validation",
		"completion",
	}
	assert.Equal(t, want, Names())

	all := All()
	for i, s := range all {
		assert.Equal(t, i, s.Index())
		assert.True(t, s.Valid())
		assert.Equal(t, s, Parse(s.String()), "round trip for %s", s)
	}
}

func TestStage_Valid(t *testing.T) {
	t.Parallel()

	assert.False(t, Unrecognized.Valid())
	assert.False(t, Stage(99).Valid())
	assert.Equal(t, -1, Unrecognized.Index())
	assert.Equal(t, "stage(99)", Stage(99).String())
}

func TestStage_Before(t *testing.T) {
	t.Parallel()

	assert.True(t, RequirementsAnalysis.Before(ArchitectureDesign))
	assert.False(t, ArchitectureDesign.Before(RequirementsAnalysis))
	assert.False(t, Unrecognized.Before(Completion))
}

func TestStage_TextEncoding(t *testing.T) {
	t.Parallel()

	type payload struct {
		Stage Stage `json:"stage" yaml:"stage"`
	}

	data, err := json.Marshal(payload{Stage: SecurityScanning})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"security_scanning"}`, string(data))

	var decoded payload
	require.NoError(t, json.Unmarshal([]byte(`{"stage":"bogus"}`), &decoded))
	assert.Equal(t, Unrecognized, decoded.Stage)

	var fromYAML payload
	require.NoError(t, yaml.Unmarshal([]byte("stage: validation\n"), &fromYAML))
	assert.Equal(t, Validation, fromYAML.Stage)
}

func TestStage_Title(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Repository Publishing", GithubDeployment.Title())
	assert.Equal(t, "Requirements Analysis", RequirementsAnalysis.Title())
}

func TestMode_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, Sequential.Valid())
	assert.True(t, Parallel.Valid())
	assert.False(t, Mode("batch").Valid())
}
