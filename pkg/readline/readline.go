// Package readline provides line editing and command history for
// sched-repl, the interactive table inspector.
package readline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Reader reads lines from an input stream, keeping a bounded history and
// optionally persisting it to a file between sessions.
type Reader struct {
	input       io.Reader
	output      io.Writer
	prompt      string
	history     []string
	historyFile string
	maxHistory  int
	scanner     *bufio.Scanner
}

// Config configures a Reader.
type Config struct {
	Prompt      string
	HistoryFile string
	MaxHistory  int
	Input       io.Reader
	Output      io.Writer
}

// NewReader creates a Reader, loading history from HistoryFile if set.
func NewReader(config *Config) *Reader {
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.MaxHistory == 0 {
		config.MaxHistory = 1000
	}

	r := &Reader{
		input:       config.Input,
		output:      config.Output,
		prompt:      config.Prompt,
		historyFile: config.HistoryFile,
		maxHistory:  config.MaxHistory,
		scanner:     bufio.NewScanner(config.Input),
	}

	if config.HistoryFile != "" {
		r.loadHistory()
	}

	return r
}

// ReadLine prints the prompt and reads one line, recording it in history
// unless it is empty or a repeat of the previous line. Returns io.EOF when
// the input stream is exhausted.
func (r *Reader) ReadLine() (string, error) {
	fmt.Fprint(r.output, r.prompt)

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	line := r.scanner.Text()
	if line != "" && (len(r.history) == 0 || r.history[len(r.history)-1] != line) {
		r.AddHistory(line)
	}
	return line, nil
}

// AddHistory appends a line to history, trimming to MaxHistory and
// persisting to HistoryFile if configured.
func (r *Reader) AddHistory(line string) {
	r.history = append(r.history, line)
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
	if r.historyFile != "" {
		r.saveHistory()
	}
}

// GetHistory returns the accumulated command history.
func (r *Reader) GetHistory() []string { return r.history }

// SetPrompt changes the prompt string shown before each ReadLine.
func (r *Reader) SetPrompt(prompt string) { r.prompt = prompt }

func (r *Reader) loadHistory() error {
	dir := filepath.Dir(r.historyFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := os.ReadFile(r.historyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			r.history = append(r.history, line)
		}
	}
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
	return nil
}

func (r *Reader) saveHistory() error {
	dir := filepath.Dir(r.historyFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(r.historyFile, []byte(strings.Join(r.history, "\n")), 0644)
}
