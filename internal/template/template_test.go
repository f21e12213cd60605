package template

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand_NamedVars(t *testing.T) {
	out := Expand("req=${request_id} model=${model}", Vars{"request_id": "r1", "model": "gpt-4o"})
	assert.Equal(t, "req=r1 model=gpt-4o", out)
}

func TestExpand_UnknownVarLeftLiteral(t *testing.T) {
	out := Expand("x=${nonexistent}", Vars{})
	assert.Equal(t, "x=${nonexistent}", out)
}

func TestExpand_EnvVar(t *testing.T) {
	os.Setenv("LUNAROUTE_TEST_VAR", "hello")
	defer os.Unsetenv("LUNAROUTE_TEST_VAR")

	out := Expand("v=${env.LUNAROUTE_TEST_VAR}", Vars{})
	assert.Equal(t, "v=hello", out)
}

func TestExpand_SensitiveEnvVarBlocked(t *testing.T) {
	os.Setenv("AWS_SECRET_ACCESS_KEY", "shh")
	defer os.Unsetenv("AWS_SECRET_ACCESS_KEY")

	out := Expand("v=${env.AWS_SECRET_ACCESS_KEY}", Vars{})
	assert.Equal(t, "v=${env.AWS_SECRET_ACCESS_KEY}", out)
}

func TestExpand_KeySubstringBlocked(t *testing.T) {
	os.Setenv("STRIPE_API_KEY", "sk_live_x")
	defer os.Unsetenv("STRIPE_API_KEY")

	out := Expand("v=${env.STRIPE_API_KEY}", Vars{})
	assert.Equal(t, "v=${env.STRIPE_API_KEY}", out)
}

func TestExpand_UnsetEnvVarLeftLiteral(t *testing.T) {
	os.Unsetenv("LUNAROUTE_DEFINITELY_UNSET")
	out := Expand("v=${env.LUNAROUTE_DEFINITELY_UNSET}", Vars{})
	assert.Equal(t, "v=${env.LUNAROUTE_DEFINITELY_UNSET}", out)
}
