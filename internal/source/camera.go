package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Runner lets us stub external commands in tests
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		slog.Error("Capture command failed",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 2<<10),
		)
	} else {
		slog.Debug("Capture command finished", "cmd", name, "duration_ms", time.Since(start).Milliseconds())
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// DefaultCameraArgs captures one JPEG frame with fswebcam
var DefaultCameraArgs = []string{"-q", "-d", "{device}", "--no-banner", "-r", "1920x1080", "--jpeg", "95", "{output}"}

// CameraConfig describes how to take a photo with an external tool
type CameraConfig struct {
	// Command is the capture binary, e.g. fswebcam or libcamera-still
	Command string
	// Args may contain {device} and {output} placeholders
	Args []string
	// Device is the video device, e.g. /dev/video0; empty skips the device check
	Device string
	// Timeout bounds a single capture
	Timeout time.Duration
}

// Camera takes photos by running a capture command. Access is checked once
// and the answer is cached for the lifetime of the Camera.
type Camera struct {
	cfg         CameraConfig
	runner      Runner
	lookPath    func(string) (string, error)
	deviceCheck func(string) error

	once      sync.Once
	accessErr error
}

// NewCamera creates a Camera that runs cfg.Command
func NewCamera(cfg CameraConfig) *Camera {
	return NewCameraWithDeps(cfg, execRunner{}, exec.LookPath, checkDevice)
}

// NewCameraWithDeps creates a Camera with custom dependencies for testing
func NewCameraWithDeps(cfg CameraConfig, runner Runner, lookPath func(string) (string, error), deviceCheck func(string) error) *Camera {
	if len(cfg.Args) == 0 {
		cfg.Args = DefaultCameraArgs
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Camera{
		cfg:         cfg,
		runner:      runner,
		lookPath:    lookPath,
		deviceCheck: deviceCheck,
	}
}

// checkDevice opens the device read-only to learn whether we may use it
func checkDevice(device string) error {
	f, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

// Access returns nil when the camera can be used, ErrPermissionDenied when the
// device is present but not readable, and ErrCameraUnavailable otherwise.
func (c *Camera) Access() error {
	c.once.Do(func() {
		if c.cfg.Command == "" {
			c.accessErr = fmt.Errorf("%w: no capture command configured", ErrCameraUnavailable)
			return
		}
		if _, err := c.lookPath(c.cfg.Command); err != nil {
			c.accessErr = fmt.Errorf("%w: %s not found: %w", ErrCameraUnavailable, c.cfg.Command, err)
			return
		}
		if c.cfg.Device == "" {
			return
		}
		if err := c.deviceCheck(c.cfg.Device); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				c.accessErr = fmt.Errorf("%w: %s: %w", ErrPermissionDenied, c.cfg.Device, err)
				return
			}
			c.accessErr = fmt.Errorf("%w: %s: %w", ErrCameraUnavailable, c.cfg.Device, err)
		}
	})
	return c.accessErr
}

// Available is the capability flag shown by the UI
func (c *Camera) Available() bool {
	return c.Access() == nil
}

// Acquire takes one photo
func (c *Camera) Acquire(ctx context.Context) (*Image, error) {
	if err := c.Access(); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "card-capture-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp dir: %w", ErrCaptureFailed, err)
	}
	defer os.RemoveAll(tmpDir)
	out := filepath.Join(tmpDir, "capture.jpg")

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	_, stderr, err := c.runner.Run(ctx, c.cfg.Command, c.expandArgs(out)...)
	if err != nil {
		return nil, classifyCaptureError(ctx, err, stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: reading capture: %w", ErrCaptureFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: capture produced an empty file", ErrCaptureFailed)
	}

	return &Image{
		Name:        fmt.Sprintf("capture-%d.jpg", time.Now().Unix()),
		Data:        data,
		ContentType: "image/jpeg",
		Origin:      OriginCamera,
	}, nil
}

// Origin implements ImageSource
func (c *Camera) Origin() Origin {
	return OriginCamera
}

func (c *Camera) expandArgs(output string) []string {
	args := make([]string, len(c.cfg.Args))
	for i, a := range c.cfg.Args {
		a = strings.ReplaceAll(a, "{output}", output)
		a = strings.ReplaceAll(a, "{device}", c.cfg.Device)
		args[i] = a
	}
	return args
}

func classifyCaptureError(ctx context.Context, err error, stderr []byte) error {
	msg := strings.ToLower(string(stderr))
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out", ErrCaptureFailed)
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	case errors.Is(err, fs.ErrPermission), strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case strings.Contains(msg, "no such file or directory"), strings.Contains(msg, "no such device"):
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
}

// NoCamera stands in when no capture command is configured
type NoCamera struct{}

// Acquire always fails with ErrCameraUnavailable
func (NoCamera) Acquire(ctx context.Context) (*Image, error) {
	return nil, ErrCameraUnavailable
}

// Origin implements ImageSource
func (NoCamera) Origin() Origin {
	return OriginCamera
}

// Available is always false
func (NoCamera) Available() bool {
	return false
}
