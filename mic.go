package main

import (
	"io"
	"os/exec"
	"strings"

	"github.com/cupogo/andvari/utils/zlog"

	"github.com/liut/parley/pkg/services/chat"
)

func logger() zlog.Logger {
	return zlog.Get()
}

// commandMicrophone captures from the stdout of an external recorder
func commandMicrophone(cmdline string) chat.Microphone {
	args := strings.Fields(cmdline)
	if len(args) == 0 {
		return nil
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		logger().Infow("recorder not found, voice disabled", "cmd", args[0], "err", err)
		return nil
	}
	return chat.NewReaderMicrophone(func() (io.ReadCloser, error) {
		cmd := exec.Command(args[0], args[1:]...)
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err = cmd.Start(); err != nil {
			return nil, err
		}
		logger().Debugw("recorder started", "pid", cmd.Process.Pid)
		return &recorderPipe{ReadCloser: out, cmd: cmd}, nil
	}, 0)
}

type recorderPipe struct {
	io.ReadCloser
	cmd *exec.Cmd
}

// Close kills the recorder and reaps it
func (p *recorderPipe) Close() error {
	_ = p.cmd.Process.Kill()
	err := p.cmd.Wait()
	logger().Debugw("recorder stopped", "err", err)
	return nil
}
