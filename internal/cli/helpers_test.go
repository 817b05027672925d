package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const caughtScenario = `name: caught
description: a thrown kind reaches its handler
main:
  - try:
      body:
        - throw: {kind: 2, message: oops}
      catch:
        - kind: 2
          steps:
            - set: caught
flags:
  caught: true
`

const wrongScenario = `name: wrong
description: claims the handler never ran
main:
  - try:
      body:
        - throw: {kind: 2}
      catch:
        - kind: 2
          steps:
            - set: caught
flags:
  caught: false
`

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeScenario(t *testing.T, dir, file, doc string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}
