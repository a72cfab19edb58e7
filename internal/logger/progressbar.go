package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar tracks how many run files of one grid cell have been handled.
// It is safe for concurrent use by sweep workers.
type ProgressBar struct {
	current     int
	failed      int
	total       int
	width       int
	enableColor bool
	prefix      string
	mu          sync.RWMutex
}

// NewProgressBar creates a bar for total files rendered width characters wide.
// Widths below 1 fall back to 10.
func NewProgressBar(total, width int, enableColor bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{
		total:       total,
		width:       width,
		enableColor: enableColor,
	}
}

// Update sets the current progress value
func (pb *ProgressBar) Update(current int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = current
}

// Increment counts one handled file
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
}

// MarkFailed counts one handled file that could not be analyzed
func (pb *ProgressBar) MarkFailed() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
	pb.failed++
}

// Current returns the number of handled files
func (pb *ProgressBar) Current() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.current
}

// Failed returns the number of files that failed
func (pb *ProgressBar) Failed() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.failed
}

// Total returns the number of files expected
func (pb *ProgressBar) Total() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.total
}

// Done reports whether every expected file has been handled
func (pb *ProgressBar) Done() bool {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.current >= pb.total
}

// Percentage returns the progress percentage clamped to 0-100
func (pb *ProgressBar) Percentage() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.percentLocked()
}

func (pb *ProgressBar) percentLocked() int {
	if pb.total <= 0 {
		return 0
	}
	perc := (pb.current * 100) / pb.total
	return min(max(perc, 0), 100)
}

// SetPrefix sets text rendered before the bar, usually the cell name
func (pb *ProgressBar) SetPrefix(prefix string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.prefix = prefix
}

// Render returns "<prefix>[====      ] 4/10 (40%)", followed by
// ", N failed" once any file has failed.
func (pb *ProgressBar) Render() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	perc := pb.percentLocked()
	filled := min(perc*pb.width/100, pb.width)

	var b strings.Builder
	b.WriteString(pb.prefix)
	b.WriteByte('[')
	b.WriteString(strings.Repeat("=", filled))
	b.WriteString(strings.Repeat(" ", pb.width-filled))
	b.WriteByte(']')
	fmt.Fprintf(&b, " %d/%d (%d%%)", pb.current, pb.total, perc)
	if pb.failed > 0 {
		fmt.Fprintf(&b, ", %d failed", pb.failed)
	}
	result := b.String()

	if !pb.enableColor {
		return result
	}

	var c *color.Color
	switch {
	case pb.failed > 0:
		c = color.New(color.FgYellow)
	case perc < 100:
		c = color.New(color.FgCyan)
	default:
		c = color.New(color.FgGreen)
	}
	c.EnableColor()
	return c.Sprint(result)
}
