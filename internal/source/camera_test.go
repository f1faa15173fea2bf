package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockRunner is a mock implementation of Runner
type mockRunner struct {
	write  []byte
	stderr []byte
	err    error
	block  bool
	name   string
	args   []string
	calls  int
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.calls++
	m.name = name
	m.args = args
	if m.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.stderr, m.err
	}
	if m.write != nil {
		out := args[len(args)-1]
		if err := os.WriteFile(out, m.write, 0644); err != nil {
			return nil, nil, err
		}
	}
	return nil, m.stderr, nil
}

func foundPath(name string) (string, error) { return "/usr/bin/" + name, nil }

func missingPath(name string) (string, error) { return "", exec.ErrNotFound }

func deviceOK(string) error { return nil }

var _ = Describe("Camera", func() {
	var (
		cfg         CameraConfig
		runner      *mockRunner
		lookPath    func(string) (string, error)
		deviceCheck func(string) error
		camera      *Camera
		img         *Image
		err         error
	)

	BeforeEach(func() {
		cfg = CameraConfig{Command: "fswebcam", Device: "/dev/video0", Timeout: time.Second}
		runner = &mockRunner{write: []byte("jpeg-bytes")}
		lookPath = foundPath
		deviceCheck = deviceOK
	})

	JustBeforeEach(func() {
		camera = NewCameraWithDeps(cfg, runner, lookPath, deviceCheck)
		img, err = camera.Acquire(context.Background())
	})

	When("the capture succeeds", func() {
		It("returns the photo", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Data).To(Equal([]byte("jpeg-bytes")))
			Expect(img.Origin).To(Equal(OriginCamera))
			Expect(img.ContentType).To(Equal("image/jpeg"))
		})

		It("expands the placeholders", func() {
			Expect(runner.name).To(Equal("fswebcam"))
			Expect(runner.args).To(ContainElement("/dev/video0"))
			Expect(runner.args[len(runner.args)-1]).To(HaveSuffix("capture.jpg"))
			for _, a := range runner.args {
				Expect(strings.Contains(a, "{")).To(BeFalse())
			}
		})

		It("reports the camera as available", func() {
			Expect(camera.Available()).To(BeTrue())
		})
	})

	When("the capture tool is not installed", func() {
		BeforeEach(func() {
			lookPath = missingPath
		})

		It("returns ErrCameraUnavailable without running anything", func() {
			Expect(errors.Is(err, ErrCameraUnavailable)).To(BeTrue())
			Expect(runner.calls).To(Equal(0))
			Expect(camera.Available()).To(BeFalse())
		})
	})

	When("no command is configured", func() {
		BeforeEach(func() {
			cfg.Command = ""
		})

		It("returns ErrCameraUnavailable", func() {
			Expect(errors.Is(err, ErrCameraUnavailable)).To(BeTrue())
		})
	})

	When("the device is not readable", func() {
		BeforeEach(func() {
			deviceCheck = func(string) error { return &fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrPermission} }
		})

		It("returns ErrPermissionDenied", func() {
			Expect(errors.Is(err, ErrPermissionDenied)).To(BeTrue())
			Expect(errors.Is(err, ErrCameraUnavailable)).To(BeFalse())
		})
	})

	When("the device does not exist", func() {
		BeforeEach(func() {
			deviceCheck = func(string) error { return &fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrNotExist} }
		})

		It("returns ErrCameraUnavailable", func() {
			Expect(errors.Is(err, ErrCameraUnavailable)).To(BeTrue())
		})
	})

	When("the tool reports a permission problem", func() {
		BeforeEach(func() {
			runner = &mockRunner{err: errors.New("exit status 1"), stderr: []byte("Error opening device: Permission denied")}
		})

		It("returns ErrPermissionDenied", func() {
			Expect(errors.Is(err, ErrPermissionDenied)).To(BeTrue())
		})
	})

	When("the tool fails for another reason", func() {
		BeforeEach(func() {
			runner = &mockRunner{err: errors.New("exit status 2"), stderr: []byte("Unable to find a compatible palette format.")}
		})

		It("returns ErrCaptureFailed", func() {
			Expect(errors.Is(err, ErrCaptureFailed)).To(BeTrue())
		})
	})

	When("the capture hangs", func() {
		BeforeEach(func() {
			cfg.Timeout = 10 * time.Millisecond
			runner = &mockRunner{block: true}
		})

		It("returns ErrCaptureFailed after the timeout", func() {
			Expect(errors.Is(err, ErrCaptureFailed)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("timed out"))
		})
	})

	When("the tool writes nothing", func() {
		BeforeEach(func() {
			runner = &mockRunner{}
		})

		It("returns ErrCaptureFailed", func() {
			Expect(errors.Is(err, ErrCaptureFailed)).To(BeTrue())
		})
	})

	Describe("Access", func() {
		It("checks the device only once", func() {
			checks := 0
			c := NewCameraWithDeps(cfg, runner, foundPath, func(string) error {
				checks++
				return nil
			})
			c.Available()
			c.Available()
			_, _ = c.Acquire(context.Background())
			Expect(checks).To(Equal(1))
		})
	})
})
