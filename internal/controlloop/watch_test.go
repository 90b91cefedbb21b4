package controlloop_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/gengqx/apollo/internal/controlloop"
	"github.com/gengqx/apollo/internal/logging"
)

var _ = ginkgo.Describe("Watcher", func() {
	ginkgo.It("reports writes to watched config files only", func() {
		dir := ginkgo.GinkgoT().TempDir()
		watched := filepath.Join(dir, "controller_conf.pb.txt")
		other := filepath.Join(dir, "notes.txt")
		gomega.Expect(os.WriteFile(watched, []byte("ts: 0.01\n"), 0644)).To(gomega.Succeed())

		changed := make(chan string, 8)
		w, err := controlloop.NewWatcher(logging.NewNopLogger(), func(task string) { changed <- task })
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(w.Close)
		gomega.Expect(w.Watch("LonController", watched)).To(gomega.Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		ginkgo.DeferCleanup(cancel)
		go w.Run(ctx)

		gomega.Expect(os.WriteFile(other, []byte("x"), 0644)).To(gomega.Succeed())
		gomega.Expect(os.WriteFile(watched, []byte("ts: 0.02\n"), 0644)).To(gomega.Succeed())

		gomega.Eventually(changed, 5*time.Second).Should(gomega.Receive(gomega.Equal("LonController")))
	})

	ginkgo.It("fails to watch a missing directory", func() {
		w, err := controlloop.NewWatcher(nil, nil)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer w.Close()

		missing := filepath.Join(ginkgo.GinkgoT().TempDir(), "absent", "controller_conf.pb.txt")
		gomega.Expect(w.Watch("LatController", missing)).NotTo(gomega.Succeed())
	})
})
