package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/toolmesh/gateway/internal/gatewayerr"
)

// wasmHandle runs a WASM module in-process via wazero, using pipes to
// stand in for the module's stdin/stdout so the rest of the supervisor
// and the rpc client can treat it exactly like a subprocess handle.
type wasmHandle struct {
	runtime wazero.Runtime
	cancel  context.CancelFunc
	done    chan error

	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
}

func (w *wasmHandle) Stdin() io.Writer    { return w.stdinW }
func (w *wasmHandle) Stdout() io.Reader   { return w.stdoutR }
func (w *wasmHandle) PID() int            { return 0 }
func (w *wasmHandle) ContainerID() string { return "" }

func (w *wasmHandle) Wait() error {
	return <-w.done
}

func (w *wasmHandle) Stop(ctx context.Context) error {
	w.cancel()
	w.stdinW.Close()
	select {
	case err := <-w.done:
		w.runtime.Close(context.Background())
		return err
	case <-ctx.Done():
		w.runtime.Close(context.Background())
		return ctx.Err()
	}
}

// startWASM compiles and instantiates spec.Command as a WASI module,
// wiring its stdin/stdout to OS pipes so it behaves like any other
// stdio-flavored child from the rpc client's perspective. This is a
// sandboxing mode for the stdio launch method, not a distinct launch
// method of its own: it activates whenever server_command.command
// names a .wasm file.
func (s *Supervisor) startWASM(ctx context.Context, spec LaunchSpec) (Handle, error) {
	wasmBytes, err := os.ReadFile(spec.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: read wasm module: %v", gatewayerr.ErrSpawnFailed, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	runtime := wazero.NewRuntime(runCtx)

	if _, err := wasi_snapshot_preview1.Instantiate(runCtx, runtime); err != nil {
		cancel()
		runtime.Close(context.Background())
		return nil, fmt.Errorf("%w: instantiate WASI: %v", gatewayerr.ErrSpawnFailed, err)
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		cancel()
		runtime.Close(context.Background())
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrSpawnFailed, err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		cancel()
		runtime.Close(context.Background())
		return nil, fmt.Errorf("%w: %v", gatewayerr.ErrSpawnFailed, err)
	}

	config := wazero.NewModuleConfig().
		WithStdin(stdinR).
		WithStdout(stdoutW).
		WithArgs(append([]string{spec.Command}, spec.Args...)...)
	for k, v := range spec.Env {
		config = config.WithEnv(k, v)
	}

	done := make(chan error, 1)
	go func() {
		_, err := runtime.InstantiateWithConfig(runCtx, wasmBytes, config)
		stdoutW.Close()
		done <- err
	}()

	h := &wasmHandle{
		runtime: runtime,
		cancel:  cancel,
		done:    done,
		stdinR:  stdinR,
		stdinW:  stdinW,
		stdoutR: stdoutR,
		stdoutW: stdoutW,
	}
	return h, nil
}
