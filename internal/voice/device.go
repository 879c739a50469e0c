// Package voice captures a short audio sample from an input device and
// submits it as the agent's voice.
package voice

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
)

// InputStream is a live capture. Close stops the capture and returns the
// recorded bytes.
type InputStream interface {
	Close() ([]byte, error)
}

// InputDevice opens capture streams.
type InputDevice interface {
	Open(ctx context.Context) (InputStream, error)
}

// CommandDevice shells out to an external capture command (ffmpeg, arecord,
// sox) that writes encoded audio to stdout until it is interrupted.
type CommandDevice struct {
	command string
}

func NewCommandDevice(command string) *CommandDevice {
	return &CommandDevice{command: command}
}

func (d *CommandDevice) Open(ctx context.Context) (InputStream, error) {
	if strings.TrimSpace(d.command) == "" {
		return nil, apperrors.InputUnavailable(nil).WithDetails("RECORD_COMMAND is not configured")
	}

	parts := strings.Fields(d.command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperrors.InputUnavailable(err)
	}
	if err := cmd.Start(); err != nil {
		return nil, apperrors.InputUnavailable(err)
	}

	s := &commandStream{cmd: cmd}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := io.Copy(&s.buf, stdout); err != nil {
			log.Debug().Err(err).Msg("capture stream ended")
		}
	}()
	return s, nil
}

type commandStream struct {
	cmd *exec.Cmd
	buf bytes.Buffer
	wg  sync.WaitGroup
}

func (s *commandStream) Close() ([]byte, error) {
	// Interrupt lets encoders finalize the container; kill is the fallback.
	if err := s.cmd.Process.Signal(syscall.SIGINT); err != nil {
		s.cmd.Process.Kill()
	}
	s.wg.Wait()
	if err := s.cmd.Wait(); err != nil {
		// Capture tools exit non-zero when interrupted; the bytes are still
		// good as long as we got any.
		log.Debug().Err(err).Msg("capture command exited")
	}

	audio := s.buf.Bytes()
	if len(audio) == 0 {
		return nil, apperrors.InputUnavailable(nil).WithDetails("capture produced no audio")
	}
	return audio, nil
}
