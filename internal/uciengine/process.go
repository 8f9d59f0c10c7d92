package uciengine

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Process is a running engine: commands in, stdout lines out.
type Process interface {
	// Send writes one command line.
	Send(cmd string) error
	// Lines yields stdout lines and is closed when the process exits.
	Lines() <-chan string
	// Close terminates the process.
	Close() error
}

// Launcher starts engine processes.
type Launcher interface {
	Launch() (Process, error)
}

// ExecLauncher runs an engine binary.
type ExecLauncher struct {
	Path string
	Args []string
}

// Launch starts the binary with stdin/stdout pipes.
func (l ExecLauncher) Launch() (Process, error) {
	if l.Path == "" {
		return nil, fmt.Errorf("engine path not configured")
	}
	cmd := exec.Command(l.Path, l.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Path, err)
	}

	p := &execProcess{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 256),
	}
	go p.scan(stdout)
	return p, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	mu        sync.Mutex
	closeOnce sync.Once
}

func (p *execProcess) scan(r io.Reader) {
	defer close(p.lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.lines <- sc.Text()
	}
}

func (p *execProcess) Send(cmd string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.stdin, cmd+"\n")
	return err
}

func (p *execProcess) Lines() <-chan string { return p.lines }

func (p *execProcess) Close() error {
	p.closeOnce.Do(func() {
		p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		// Wait reaps the child; the kill makes its error uninteresting.
		_ = p.cmd.Wait()
	})
	return nil
}
