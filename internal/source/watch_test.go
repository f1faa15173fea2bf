package source

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Watch", func() {
	var (
		dir    string
		ctx    context.Context
		cancel context.CancelFunc
		err    error
	)

	BeforeEach(func() {
		dir, err = os.MkdirTemp("", "watch-test-*")
		Expect(err).NotTo(HaveOccurred())
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
		os.RemoveAll(dir)
	})

	It("requires a directory", func() {
		_, err := Watch(ctx, WatchConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("emits existing images on the initial scan", func() {
		existing := filepath.Join(dir, "existing.jpg")
		Expect(os.WriteFile(existing, []byte("x"), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644)).To(Succeed())

		paths, err := Watch(ctx, WatchConfig{Dir: dir, InitialScan: true, Debounce: 20 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())
		Eventually(paths).Should(Receive(Equal(existing)))
	})

	It("emits new images once", func() {
		paths, err := Watch(ctx, WatchConfig{Dir: dir, Debounce: 20 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())

		added := filepath.Join(dir, "new.png")
		Expect(os.WriteFile(added, []byte("png"), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("txt"), 0644)).To(Succeed())

		Eventually(paths, time.Second).Should(Receive(Equal(added)))
		Consistently(paths, 100*time.Millisecond).ShouldNot(Receive())
	})

	It("closes the channel when the context ends", func() {
		paths, err := Watch(ctx, WatchConfig{Dir: dir})
		Expect(err).NotTo(HaveOccurred())
		cancel()
		Eventually(paths).Should(BeClosed())
	})
})
