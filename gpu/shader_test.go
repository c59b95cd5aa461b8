package gpu

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ditherSource = `fn color() -> vec4<f32> {
#ifdef DITHER
    return dithered();
#else
    return plain();
#endif
}`

func TestPreprocess_IfdefBranches(t *testing.T) {
	out, err := Preprocess(ditherSource, []string{"DITHER"})
	require.NoError(t, err)
	assert.Contains(t, out, "dithered()")
	assert.NotContains(t, out, "plain()")
	assert.NotContains(t, out, "#")

	out, err = Preprocess(ditherSource, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "plain()")
	assert.NotContains(t, out, "dithered()")
}

func TestPreprocess_NestedAndDefine(t *testing.T) {
	src := strings.Join([]string{
		"#define A",
		"#ifdef A",
		"a",
		"#ifndef B",
		"not_b",
		"#endif",
		"#endif",
		"#ifdef B",
		"b",
		"#endif",
	}, "\n")

	out, err := Preprocess(src, nil)
	require.NoError(t, err)
	if out != "a\nnot_b" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPreprocess_InactiveParentHidesElse(t *testing.T) {
	src := "#ifdef X\n#ifdef Y\ny\n#else\nnot_y\n#endif\n#endif\nend"
	out, err := Preprocess(src, nil)
	require.NoError(t, err)
	assert.Equal(t, "end", out)
}

func TestPreprocess_Errors(t *testing.T) {
	cases := map[string]string{
		"unterminated": "#ifdef A\na",
		"stray endif":  "#endif",
		"stray else":   "#else",
		"double else":  "#ifdef A\n#else\n#else\n#endif",
		"bad define":   "#define",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Preprocess(src, nil)
			assert.Error(t, err)
		})
	}
}

func TestShaderSource_Load(t *testing.T) {
	code, err := ShaderSource{Label: "inline", Code: "fn main() {}"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", code)

	path := filepath.Join(t.TempDir(), "sky.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// from disk"), 0o644))
	code, err = ShaderSource{Label: "disk", Path: path}.Load()
	require.NoError(t, err)
	assert.Equal(t, "// from disk", code)

	_, err = ShaderSource{Label: "missing", Path: filepath.Join(t.TempDir(), "nope.wgsl")}.Load()
	assert.Error(t, err)

	_, err = ShaderSource{Label: "empty"}.Load()
	assert.Error(t, err)
}
