package runner

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/limaJavier/placement/internal/metrics"
	"github.com/limaJavier/placement/internal/store"
	"github.com/limaJavier/placement/pkg/ip"
	"github.com/limaJavier/placement/pkg/model"
)

const instancesDirectory = "../../test/instances/"

// gatedPlacer blocks Build until release is closed, then delegates or misbehaves
type gatedPlacer struct {
	release  chan struct{}
	placer   model.Placer
	panics   bool
	verified bool
}

func (placer *gatedPlacer) Build(ctx context.Context, run model.RunContext, modelInput model.ModelInput) (*model.Placement, error) {
	<-placer.release
	if placer.panics {
		panic("registry lookup failed")
	}
	return placer.placer.Build(ctx, run, modelInput)
}

func (placer *gatedPlacer) Verify(placement *model.Placement, modelInput model.ModelInput) bool {
	return placer.verified && placer.placer.Verify(placement, modelInput)
}

func loadInstance(name string) Loader {
	return func(context.Context) (model.ModelInput, error) {
		return model.InputFromJson(instancesDirectory + name)
	}
}

func counterValue(registry *prometheus.Registry, name string, labels map[string]string) float64 {
	families, err := registry.Gather()
	Expect(err).NotTo(HaveOccurred())
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if labels[label.GetName()] != label.GetValue() {
					continue metricLoop
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

var _ = Describe("Runner", func() {
	var (
		placer     *gatedPlacer
		reports    store.Store
		runMetrics *metrics.Metrics
		runner     *Runner
		ctx        context.Context
		cancel     context.CancelFunc
	)

	BeforeEach(func() {
		placer = &gatedPlacer{
			release:  make(chan struct{}),
			placer:   model.NewPlacer(ip.NewSimplexSolver()),
			verified: true,
		}
		reports = store.NewMemoryStore()
		runMetrics = metrics.New()
		runner = New(placer, reports, suiteLogger, WithMetrics(runMetrics))
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	It("should start idle without a report", func() {
		Expect(runner.State()).To(Equal(StateIdle))
		Expect(runner.Current().Report).To(BeNil())
		Expect(runner.Lines()).To(BeEmpty())
		Expect(runner.Wait(ctx)).To(Succeed())
	})

	Context("when a run succeeds", func() {
		var id string

		BeforeEach(func() {
			var started bool
			id, started = runner.Start(loadInstance("school.json"))
			Expect(started).To(BeTrue())
			Expect(id).NotTo(BeEmpty())
		})

		It("should be running until the solve completes", func() {
			Expect(runner.State()).To(Equal(StateRunning))
			close(placer.release)
			Expect(runner.Wait(ctx)).To(Succeed())
			Expect(runner.State()).To(Equal(StateSucceeded))
		})

		It("should report every progress line and save the report", func() {
			close(placer.release)
			Expect(runner.Wait(ctx)).To(Succeed())

			lines := runner.Lines()
			Expect(lines[:3]).To(Equal([]string{"Read 18 pupils", "Read 3 classes", "Read 8 wishes"}))
			Expect(lines).To(ContainElement("Solution: objective value = 15"))

			snapshot := runner.Current()
			Expect(snapshot.State).To(Equal(StateSucceeded))
			Expect(snapshot.Report.ID).To(Equal(id))
			Expect(snapshot.Report.Placement.Placed()).To(Equal(15))

			latest, err := reports.Latest(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal(id))
			Expect(latest.Lines).To(Equal(lines))
			Expect(latest.State).To(Equal("succeeded"))
			Expect(counterValue(runMetrics.Registry, "placement_runs_total", map[string]string{"outcome": "succeeded"})).To(Equal(1.0))
		})

		It("should ignore start requests until reset", func() {
			_, started := runner.Start(loadInstance("school.json"))
			Expect(started).To(BeFalse())
			Expect(runner.Reset()).To(MatchError(ErrRunning))

			close(placer.release)
			Expect(runner.Wait(ctx)).To(Succeed())

			_, started = runner.Start(loadInstance("school.json"))
			Expect(started).To(BeFalse())
			Expect(counterValue(runMetrics.Registry, "placement_ignored_starts_total", nil)).To(Equal(2.0))

			Expect(runner.Reset()).To(Succeed())
			Expect(runner.State()).To(Equal(StateIdle))
			Expect(runner.Current().Report.ID).To(Equal(id))

			nextId, started := runner.Start(loadInstance("two_classes.json"))
			Expect(started).To(BeTrue())
			Expect(nextId).NotTo(Equal(id))
			Expect(runner.Wait(ctx)).To(Succeed())
			Expect(runner.State()).To(Equal(StateSucceeded))
		})
	})

	Context("when a run fails", func() {
		expectFailed := func(message string) {
			Expect(runner.Wait(ctx)).To(Succeed())
			Expect(runner.State()).To(Equal(StateFailed))

			snapshot := runner.Current()
			Expect(snapshot.Report.Placement).To(BeNil())
			Expect(snapshot.Report.Error).To(ContainSubstring(message))

			saved, err := reports.Get(ctx, snapshot.Report.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.State).To(Equal("failed"))

			_, err = reports.Latest(ctx)
			Expect(err).To(MatchError(store.ErrNotFound))
			Expect(counterValue(runMetrics.Registry, "placement_runs_total", map[string]string{"outcome": "failed"})).To(Equal(1.0))
		}

		It("should fail when the input cannot be loaded", func() {
			runner.Start(func(context.Context) (model.ModelInput, error) {
				return model.ModelInput{}, errors.New("no such file")
			})
			expectFailed("cannot load input: no such file")
		})

		It("should fail when the model cannot be built", func() {
			close(placer.release)
			runner.Start(func(context.Context) (model.ModelInput, error) {
				return model.ModelInput{
					Pupils:  []model.Pupil{{Id: 1, Name: "A"}, {Id: 2, Name: "B"}},
					Classes: []model.Class{{Name: "X", MaxInClass: 1}},
					Wishes:  []model.Wish{{PupilId1: 1, PupilId2: 2}, {PupilId1: 1, PupilId2: 2}},
				}, nil
			})
			expectFailed(model.ErrDuplicateKey.Error())
		})

		It("should recover from a panic", func() {
			placer.panics = true
			close(placer.release)
			runner.Start(loadInstance("two_classes.json"))
			expectFailed("run panicked: registry lookup failed")
		})

		It("should fail when the placement does not verify", func() {
			placer.verified = false
			close(placer.release)
			runner.Start(loadInstance("two_classes.json"))
			expectFailed(ErrVerification.Error())
		})

		It("should keep the last succeeded report", func() {
			close(placer.release)
			id, _ := runner.Start(loadInstance("two_classes.json"))
			Expect(runner.Wait(ctx)).To(Succeed())
			Expect(runner.Reset()).To(Succeed())

			runner.Start(func(context.Context) (model.ModelInput, error) {
				return model.ModelInput{}, errors.New("no such file")
			})
			Expect(runner.Wait(ctx)).To(Succeed())
			Expect(runner.State()).To(Equal(StateFailed))

			latest, err := reports.Latest(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal(id))
		})
	})

	Context("with an observer", func() {
		It("should not block on a lagging observer", func() {
			observer := make(chan string)
			runner = New(placer, reports, suiteLogger, WithObserver(observer))
			close(placer.release)

			runner.Start(loadInstance("two_classes.json"))
			Expect(runner.Wait(ctx)).To(Succeed())
			Expect(runner.State()).To(Equal(StateSucceeded))
			Expect(runner.Lines()).To(HaveLen(14))
		})

		It("should forward lines to a ready observer", func() {
			observer := make(chan string, 64)
			runner = New(placer, reports, suiteLogger, WithObserver(observer))
			close(placer.release)

			runner.Start(loadInstance("two_classes.json"))
			Expect(runner.Wait(ctx)).To(Succeed())
			Eventually(observer).Should(Receive(Equal("Read 2 pupils")))
			Expect(observer).To(HaveLen(13))
		})
	})
})
