package monitoring

import (
	"fmt"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestSetLogger(t *testing.T) {
	saved := Logf
	defer func() { Logf = saved }()

	var lines []string
	SetLogger(func(format string, v ...any) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	Logf("skipped %d features", 3)
	assert.Equal(t, []string{"skipped 3 features"}, lines)

	SetLogger(nil)
	Logf("muted")
	assert.Equal(t, 1, len(lines))
}
