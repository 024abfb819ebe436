package chaos_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	testutil "github.com/imamik/nodechaos/internal/testing"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx     context.Context
		cluster *testutil.FakeCluster
		backend *testutil.FakeBackend
		clk     *testutil.SteppingClock
		orch    *chaos.Orchestrator
	)

	newOrch := func() *chaos.Orchestrator {
		return chaos.NewOrchestrator(
			chaos.BackendFactoryFunc(func(context.Context, *config.ScenarioEntry) (chaos.CloudBackend, error) {
				return backend, nil
			}),
			cluster,
			chaos.WithRand(rand.New(rand.NewSource(7))),
			chaos.WithOrchestratorClock(clk),
		)
	}

	BeforeEach(func() {
		ctx = logf.IntoContext(context.Background(), logf.Log)
		clk = testutil.NewSteppingClock(time.Unix(0, 0))
	})

	Context("with five killable workers and a sequential stop-then-start", func() {
		BeforeEach(func() {
			cluster = testutil.NewFakeCluster().
				AddWorkers(5, map[string]string{"role": "worker"}).
				AddNode("cp-1", true, map[string]string{"role": "control-plane"})
			backend = testutil.NewFakeBackend(cluster.NodeNames()...)
			orch = newOrch()
		})

		It("records one entry per selected node with both transitions", func() {
			entry := testutil.NewScenarioBuilder().
				WithCloud(config.CloudAWS).
				WithLabelSelector("role=worker").
				WithInstanceCount(2).
				WithRuns(1).
				WithActions(config.ActionStopStart).
				Build()

			ledger, err := orch.Run(ctx, entry)
			Expect(err).NotTo(HaveOccurred())

			entries := ledger.Entries()
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].NodeName).NotTo(Equal(entries[1].NodeName))
			for _, e := range entries {
				Expect(e.NodeName).To(HavePrefix("worker-"))
				Expect(e.Transitions).To(HaveKey(chaos.TransitionRunning))
				Expect(e.Transitions).To(HaveKey(chaos.TransitionStopped))
				Expect(e.Outcome).To(Equal(chaos.OutcomeRecorded))
			}
		})
	})

	Context("when the named node does not exist", func() {
		BeforeEach(func() {
			cluster = testutil.NewFakeCluster().AddWorkers(2, nil)
			backend = testutil.NewFakeBackend(cluster.NodeNames()...)
			orch = newOrch()
		})

		It("fails selection before any backend call", func() {
			for _, action := range chaos.CloudActions {
				entry := testutil.NewScenarioBuilder().
					WithNodeName("missing-node").
					WithActions(action).
					Build()

				ledger, err := orch.Run(ctx, entry)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, chaos.ErrSelection)).To(BeTrue())

				var nf *chaos.NodeNotFoundError
				Expect(errors.As(err, &nf)).To(BeTrue())
				Expect(nf.Names).To(ConsistOf("missing-node"))
				Expect(ledger.Len()).To(BeZero())
			}
			Expect(backend.Calls()).To(BeEmpty())
		})
	})

	Context("when the backend never reports the target state", func() {
		BeforeEach(func() {
			cluster = testutil.NewFakeCluster().AddWorkers(1, nil)
			backend = testutil.NewFakeBackend(cluster.NodeNames()...)
			backend.SetStuck("worker-1")
			orch = newOrch()
		})

		It("fails with a cloud state timeout after the simulated timeout", func() {
			entry := testutil.NewScenarioBuilder().
				WithNodeName("worker-1").
				WithTimeout(5).
				WithPollInterval(1).
				WithActions(config.ActionStop, config.ActionStart).
				Build()

			start := clk.Now()
			ledger, err := orch.Run(ctx, entry)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, chaos.ErrCloudStateTimeout)).To(BeTrue())
			Expect(clk.Since(start)).To(BeNumerically(">=", 5*time.Second))
			Expect(cluster.WatchCalls()).To(BeEmpty())

			Expect(ledger.Len()).To(Equal(1))
			Expect(ledger.Entries()[0].Outcome).To(Equal(chaos.OutcomeCloudTimeout))
			Expect(backend.Calls()).NotTo(ContainElement("start:worker-1"))
		})
	})

	Context("with ten nodes dispatched in parallel", func() {
		BeforeEach(func() {
			cluster = testutil.NewFakeCluster().AddWorkers(10, map[string]string{"role": "worker"})
			backend = testutil.NewFakeBackend(cluster.NodeNames()...)
			backend.Fail("worker-4", "reboot", testutil.ErrInjected)
			orch = newOrch()
		})

		It("lets the other nodes finish when one fails", func() {
			entry := testutil.NewScenarioBuilder().
				WithLabelSelector("role=worker").
				WithInstanceCount(0).
				WithParallel(true).
				WithActions(config.ActionReboot).
				Build()

			ledger, err := orch.Run(ctx, entry)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, chaos.ErrBackend)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("worker-4"))

			entries := ledger.Entries()
			Expect(entries).To(HaveLen(10))

			var recorded []string
			for _, e := range entries {
				if e.Outcome == chaos.OutcomeRecorded {
					recorded = append(recorded, e.NodeName)
				} else {
					Expect(e.NodeName).To(Equal("worker-4"))
					Expect(e.Outcome).To(Equal(chaos.OutcomeBackendError))
				}
			}
			Expect(recorded).To(HaveLen(9))

			// Ledgers are joined in node order.
			for i, e := range entries {
				Expect(e.NodeName).To(Equal(fmt.Sprintf("worker-%d", i+1)))
			}
		})
	})
})
