package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesStdout(t *testing.T) {
	res, err := Run(context.Background(), Command{Dir: t.TempDir(), Args: []string{"echo", "a b", "$HOME"}})
	require.NoError(t, err)
	assert.Equal(t, "a b $HOME\n", string(res.Stdout))
}

func TestRunReportsExitStatus(t *testing.T) {
	_, err := Run(context.Background(), Command{Dir: t.TempDir(), Args: []string{"false"}})
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, uint8(1), exitErr.Status)
	assert.Equal(t, "false", exitErr.Command)
}

func TestRunRejectsEmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), Command{})
	assert.Error(t, err)
}

func TestCommandString(t *testing.T) {
	cmd := Command{Args: []string{"sass", "--style=expanded", "src/scss/my file.scss"}}
	assert.Equal(t, "sass --style=expanded 'src/scss/my file.scss'", cmd.String())
}
