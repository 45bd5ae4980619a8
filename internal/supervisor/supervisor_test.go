package supervisor

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/gateway/internal/registry"
)

func TestSupervisor_StartProcess_EchoesStdin(t *testing.T) {
	s := New("docker")

	h, err := s.Start(context.Background(), LaunchSpec{
		Name:    "echo-test",
		Method:  registry.LaunchStdioProxy,
		Command: "cat",
	})
	require.NoError(t, err)
	defer s.Stop(context.Background(), "echo-test")

	_, err = h.Stdin().Write([]byte("hello\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(h.Stdout())
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
}

func TestSupervisor_StartProcess_SettleExitDetected(t *testing.T) {
	s := New("docker")

	_, err := s.Start(context.Background(), LaunchSpec{
		Name:    "exit-test",
		Method:  registry.LaunchStdioProxy,
		Command: "false",
	})
	require.Error(t, err)
}

func TestSupervisor_UnsupportedLaunchMethod(t *testing.T) {
	s := New("docker")
	_, err := s.Start(context.Background(), LaunchSpec{
		Name:   "bad",
		Method: registry.LaunchRemoteHTTP,
	})
	require.Error(t, err)
}

func TestSupervisor_StopUnknownHandle(t *testing.T) {
	s := New("docker")
	err := s.Stop(context.Background(), "does-not-exist")
	require.Error(t, err)
}

func TestSupervisor_Probe_MissingBinaryFails(t *testing.T) {
	s := New("definitely-not-a-real-container-binary")
	err := s.Probe(context.Background())
	require.Error(t, err)
}

func TestSupervisor_CleanupAll(t *testing.T) {
	s := New("docker")
	_, err := s.Start(context.Background(), LaunchSpec{
		Name:    "cleanup-test",
		Method:  registry.LaunchStdioProxy,
		Command: "cat",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.CleanupAll(ctx)

	assert.Empty(t, s.handles)
}
