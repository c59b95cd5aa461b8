package gpu

import (
	"fmt"
	"os"
	"strings"
)

// ShaderSource is WGSL either embedded in the binary (Code) or read from disk (Path).
type ShaderSource struct {
	Label string
	Code  string
	Path  string
}

// Load returns the WGSL text. Code wins over Path when both are set.
func (s ShaderSource) Load() (string, error) {
	if s.Code != "" {
		return s.Code, nil
	}
	if s.Path == "" {
		return "", fmt.Errorf("shader %q has neither code nor path", s.Label)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read shader %q: %w", s.Label, err)
	}
	return string(data), nil
}

// Preprocess resolves #define, #ifdef, #ifndef, #else and #endif lines
// against defs. Directive lines are dropped from the output.
func Preprocess(source string, defs []string) (string, error) {
	defined := make(map[string]bool, len(defs))
	for _, d := range defs {
		defined[d] = true
	}

	type frame struct {
		active   bool // branch currently emitting
		parent   bool // enclosing branch was emitting
		sawElse  bool
		openLine int
	}
	var stack []frame
	emitting := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if emitting() {
				out = append(out, line)
			}
			continue
		}

		fields := strings.Fields(trimmed)
		switch fields[0] {
		case "#define":
			if len(fields) != 2 {
				return "", fmt.Errorf("line %d: #define takes one name", i+1)
			}
			if emitting() {
				defined[fields[1]] = true
			}
		case "#ifdef", "#ifndef":
			if len(fields) != 2 {
				return "", fmt.Errorf("line %d: %s takes one name", i+1, fields[0])
			}
			cond := defined[fields[1]]
			if fields[0] == "#ifndef" {
				cond = !cond
			}
			parent := emitting()
			stack = append(stack, frame{active: parent && cond, parent: parent, openLine: i + 1})
		case "#else":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #else without #ifdef", i+1)
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return "", fmt.Errorf("line %d: duplicate #else", i+1)
			}
			top.sawElse = true
			top.active = top.parent && !top.active
		case "#endif":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #endif without #ifdef", i+1)
			}
			stack = stack[:len(stack)-1]
		default:
			// not ours, e.g. a comment-like line in WGSL attributes
			if emitting() {
				out = append(out, line)
			}
		}
	}
	if len(stack) > 0 {
		return "", fmt.Errorf("line %d: unterminated %s block", stack[len(stack)-1].openLine, "#ifdef")
	}
	return strings.Join(out, "\n"), nil
}
