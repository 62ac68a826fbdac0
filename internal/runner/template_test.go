package runner

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTemplates_String(t *testing.T) {
	type S struct {
		Path string `template:""`
	}
	in := S{Path: "${CACHE_DIR}/sessions"}
	err := ExpandTemplates(&in, map[string]string{"CACHE_DIR": "/var/cache"})
	require.NoError(t, err)
	assert.Equal(t, S{Path: "/var/cache/sessions"}, in)
}

func TestExpandTemplates_PtrString(t *testing.T) {
	type S struct {
		Prefix *string `template:""`
	}
	original := "${CONFIG_NAME}/out"
	in := S{Prefix: &original}
	err := ExpandTemplates(&in, map[string]string{"CONFIG_NAME": "pdfebc"})
	require.NoError(t, err)
	require.NotNil(t, in.Prefix)
	assert.Equal(t, "pdfebc/out", *in.Prefix)
	assert.Equal(t, "${CONFIG_NAME}/out", original, "the caller's string must not be modified")
}

func TestExpandTemplates_PtrStringNil(t *testing.T) {
	type S struct {
		Prefix *string `template:""`
	}
	in := S{}
	err := ExpandTemplates(&in, map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, in.Prefix)
}

func TestExpandTemplates_StringSlice(t *testing.T) {
	type S struct {
		To []string `template:""`
	}
	in := S{To: []string{"${USER_EMAIL}", "static@example.com"}}
	err := ExpandTemplates(&in, map[string]string{"USER_EMAIL": "me@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"me@example.com", "static@example.com"}, in.To)
}

func TestExpandTemplates_UntaggedAndOptOut(t *testing.T) {
	type S struct {
		Raw     string
		Skipped string `template:"-"`
	}
	in := S{Raw: "${UNKNOWN}", Skipped: "${UNKNOWN}"}
	err := ExpandTemplates(&in, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, S{Raw: "${UNKNOWN}", Skipped: "${UNKNOWN}"}, in)
}

func TestExpandTemplates_Nested(t *testing.T) {
	type Inner struct {
		Host string `template:""`
	}
	type S struct {
		Value  Inner
		Ptr    *Inner
		Nil    *Inner
		Many   []Inner
		hidden string `template:""`
	}
	in := S{
		Value:  Inner{Host: "${HOST}"},
		Ptr:    &Inner{Host: "${HOST}:25"},
		Many:   []Inner{{Host: "a.${HOST}"}, {Host: "b.${HOST}"}},
		hidden: "${HOST}",
	}
	err := ExpandTemplates(&in, map[string]string{"HOST": "smtp.local"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local", in.Value.Host)
	assert.Equal(t, "smtp.local:25", in.Ptr.Host)
	assert.Nil(t, in.Nil)
	assert.Equal(t, []Inner{{Host: "a.smtp.local"}, {Host: "b.smtp.local"}}, in.Many)
	assert.Equal(t, "${HOST}", in.hidden)
}

func TestExpandTemplates_ErrorNamesField(t *testing.T) {
	type Inner struct {
		To []string `template:""`
	}
	type S struct {
		Email *Inner
	}
	in := S{Email: &Inner{To: []string{"ok", "${SECRET}"}}}
	err := ExpandTemplates(&in, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email: To: [1]: ")
	assert.Contains(t, err.Error(), `variable "SECRET" is not in the allowed list`)
}

func TestExpandTemplates_NonStruct(t *testing.T) {
	in := "${HOST}"
	err := ExpandTemplates(&in, map[string]string{"HOST": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects *struct")
}

func TestExpandTemplates_NilPointer(t *testing.T) {
	type S struct{}
	var in *S
	require.NoError(t, ExpandTemplates(in, nil))
}

func TestExpand(t *testing.T) {
	vars := map[string]string{"A": "1", "B": "2"}

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr []string
	}{
		{name: "no references", value: "plain", want: "plain"},
		{name: "braced and bare", value: "${A}-$B", want: "1-2"},
		{name: "unknown variable", value: "${A}${C}", wantErr: []string{`"C"`}},
		{name: "every unknown variable reported", value: "${X}${Y}", wantErr: []string{`"X"`, `"Y"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.value, vars)
			if len(tt.wantErr) > 0 {
				require.Error(t, err)
				for _, want := range tt.wantErr {
					assert.Contains(t, err.Error(), want)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandTemplates_SharedPointerUntouched(t *testing.T) {
	type S struct {
		Region *string `template:""`
	}
	shared := lo.ToPtr("${REGION}")
	a := S{Region: shared}
	b := S{Region: shared}

	require.NoError(t, ExpandTemplates(&a, map[string]string{"REGION": "eu-west-1"}))
	require.NoError(t, ExpandTemplates(&b, map[string]string{"REGION": "us-east-1"}))
	assert.Equal(t, "eu-west-1", *a.Region)
	assert.Equal(t, "us-east-1", *b.Region)
}
