// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package thumbnail

import (
	"context"
	"io"
	"os"
	"os/exec"

	"golang.org/x/xerrors"
)

// Process is a running helper: writes go to its stdin, reads come from its
// stdout.
type Process interface {
	io.ReadWriteCloser
}

type Spawner func() (Process, error)

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProcess) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *execProcess) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *execProcess) Close() error {
	err := p.stdin.Close()
	if p.cmd.Process != nil {
		// nothing is in flight once we close
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return err
}

// ExecSpawner starts path with args, usually
// "theme-thumb-tool render-helper --framing <framing>".
func ExecSpawner(path string, args ...string) Spawner {
	return func() (Process, error) {
		cmd := exec.Command(path, args...)
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, xerrors.Errorf("start %s: %w", path, err)
		}
		logger.Debugf("started thumbnail helper %s, pid %d", path, cmd.Process.Pid)
		return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
	}
}

type pipeProcess struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *pipeProcess) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeProcess) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *pipeProcess) Close() error {
	p.w.Close()
	p.r.Close()
	p.cancel()
	<-p.done
	return nil
}

// PipeSpawner runs Serve on a goroutine instead of a process.
func PipeSpawner(renderer Renderer, framing Framing) Spawner {
	return func() (Process, error) {
		reqR, reqW := io.Pipe()
		respR, respW := io.Pipe()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			err := Serve(ctx, reqR, respW, renderer, framing)
			respW.CloseWithError(err)
			reqR.Close()
		}()
		return &pipeProcess{r: respR, w: reqW, cancel: cancel, done: done}, nil
	}
}
