package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mfeit/textcrawler/internal/runner"
)

// CommandFunc builds the exec.Cmd for one worker process. Injected so
// tests can spawn a stub worker binary.
type CommandFunc func() (*exec.Cmd, error)

// SelfCommand re-executes the running binary in worker mode. Only a
// minimal environment is inherited; the worker owns no parent state
// beyond its flags and CRAWLER_* configuration.
func SelfCommand(configPath string) CommandFunc {
	return func() (*exec.Cmd, error) {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		args := []string{"-worker"}
		if configPath != "" {
			args = append(args, "-config", configPath)
		}
		cmd := exec.Command(exe, args...)
		cmd.Env = workerEnv()
		return cmd, nil
	}
}

func workerEnv() []string {
	keep := []string{"PATH=", "HOME=", "TMPDIR=", "USER=", "LANG=", "CRAWLER_", "HOST=", "PORT="}
	var env []string
	for _, kv := range os.Environ() {
		for _, prefix := range keep {
			if strings.HasPrefix(kv, prefix) {
				env = append(env, kv)
				break
			}
		}
	}
	return env
}

// worker is the parent-side handle for one worker process: the process
// plus the JSON pipes used to hand a job over and read the complete
// outcome back. A worker runs one job at a time.
type worker struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	dec   *json.Decoder
	gen   int
}

func startWorker(command CommandFunc) (*worker, error) {
	cmd, err := command()
	if err != nil {
		return nil, fmt.Errorf("build worker command: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout pipe: %w", err)
	}
	// Worker logs pass straight through; stdout is protocol-only.
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	return &worker{
		cmd:   cmd,
		stdin: stdin,
		enc:   json.NewEncoder(stdin),
		dec:   json.NewDecoder(stdout),
	}, nil
}

func (w *worker) pid() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// do sends one job and blocks until the worker writes the complete
// response. Context cancellation abandons the worker; the caller must
// treat the handle as poisoned and replace it.
func (w *worker) do(ctx context.Context, req runner.Request) (runner.Response, error) {
	if err := w.enc.Encode(req); err != nil {
		return runner.Response{}, fmt.Errorf("write job to worker: %w", err)
	}

	type decoded struct {
		resp runner.Response
		err  error
	}
	ch := make(chan decoded, 1)
	go func() {
		var resp runner.Response
		err := w.dec.Decode(&resp)
		ch <- decoded{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return runner.Response{}, fmt.Errorf("await worker: %w", ctx.Err())
	case d := <-ch:
		if d.err != nil {
			return runner.Response{}, fmt.Errorf("read worker response: %w", d.err)
		}
		if d.resp.ID != req.ID {
			return runner.Response{}, fmt.Errorf("worker response id %q does not match job %q", d.resp.ID, req.ID)
		}
		return d.resp, nil
	}
}

// kill terminates the process without waiting for in-flight work. The
// exit status is reaped asynchronously to avoid zombies.
func (w *worker) kill() {
	_ = w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	go func() {
		_ = w.cmd.Wait()
	}()
}
