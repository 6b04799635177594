package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTarget(t *testing.T) {
	opts := Options{Host: "codec", Port: 443}

	tests := []struct {
		name string
		args []any
		kind TargetKind
		want Options
	}{
		{"no arguments", nil, TargetNone, Options{}},
		{"empty string", []any{""}, TargetNone, Options{}},
		{"url string", []any{"ws://codec:80"}, TargetURL, Options{Protocol: "ws:", Host: "codec", Port: 80}},
		{"options value", []any{opts}, TargetOptions, opts},
		{"options pointer", []any{&opts}, TargetOptions, opts},
		{"target passthrough", []any{URL("codec")}, TargetURL, Options{Host: "codec"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := DecodeTarget(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, target.Kind())

			got, err := target.Normalize()
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %+v, want %+v", got, tt.want)
		})
	}
}

func TestDecodeTarget_InvalidShapes(t *testing.T) {
	tests := []struct {
		name  string
		args  []any
		shape string
	}{
		{"two arguments", []any{"codec", Options{}}, "connect(string, options.Options)"},
		{"integer", []any{42}, "connect(int)"},
		{"boolean", []any{true}, "connect(bool)"},
		{"nil", []any{nil}, "connect(<nil>)"},
		{"nil options pointer", []any{(*Options)(nil)}, "connect(*options.Options)"},
		{"map", []any{map[string]string{"host": "codec"}}, "connect(map[string]string)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTarget(tt.args...)
			require.Error(t, err)

			var argErr *InvalidArgumentsError
			require.True(t, errors.As(err, &argErr))
			assert.Equal(t, tt.shape, argErr.Shape)
			assert.Contains(t, err.Error(), "invalid arguments")
		})
	}
}

func TestWith_CopiesParams(t *testing.T) {
	params := map[string]string{"command": "tsh"}
	target := With(Options{Params: params})
	params["command"] = "changed"

	got, err := target.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "tsh", got.Param("command"))
}

func TestTargetKind_String(t *testing.T) {
	assert.Equal(t, "none", TargetNone.String())
	assert.Equal(t, "url", TargetURL.String())
	assert.Equal(t, "options", TargetOptions.String())
	assert.Equal(t, "TargetKind(9)", TargetKind(9).String())
}
