//go:build integration

package integration

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/engine"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
	"github.com/eliteGoblin/focusd/app_lock/test/fixtures"
)

const menuBarKey = "_HIHideMenuBar"

// coveredExactly reports whether every pixel of full lies in the opening or
// in at least one region, and no region pixel lies in the opening.
func coveredExactly(full, opening domain.Rect, regions []domain.RegionSpec) bool {
	for _, r := range regions {
		if r.Bounds.Intersects(opening) {
			return false
		}
	}
	for y := full.Y; y < full.Bottom(); y++ {
		for x := full.X; x < full.Right(); x++ {
			if opening.Contains(x, y) {
				continue
			}
			covered := false
			for _, r := range regions {
				if r.Bounds.Contains(x, y) {
					covered = true
					break
				}
			}
			if !covered {
				return false
			}
		}
	}
	return true
}

var _ = Describe("Focus lock engine", func() {
	var (
		desk   *infra.Headless
		clock  *clockwork.FakeClock
		eng    *engine.Engine
		cancel context.CancelFunc
		ctx    context.Context
	)

	startEngine := func(d *infra.Headless) {
		desk = d
		cfg := engine.DefaultConfig()
		cfg.Preference.SettleDelay = 0

		clock = clockwork.NewFakeClock()
		eng = engine.New(cfg, engine.Services{
			Display:  desk,
			Windows:  desk,
			Prefs:    desk,
			Surfaces: desk,
		}, clock, zap.NewNop())

		var runCtx context.Context
		runCtx, cancel = context.WithCancel(context.Background())
		go func() { _ = eng.Run(runCtx) }()
	}

	status := func() engine.Status {
		st, err := eng.Status(ctx)
		Expect(err).NotTo(HaveOccurred())
		return st
	}

	expectEnded := func(reason domain.EndReason) {
		Eventually(eng.Ended()).WithTimeout(2 * time.Second).Should(Receive(Equal(reason)))
		st := status()
		Expect(st.State).To(Equal(domain.StateIdle))
		Expect(st.Session).To(BeNil())
		Expect(desk.LiveRegions()).To(BeEmpty())
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if cancel != nil {
			cancel()
			Eventually(eng.Done()).WithTimeout(2 * time.Second).Should(BeClosed())
		}
	})

	Describe("starting a session", func() {
		BeforeEach(func() {
			startEngine(fixtures.DefaultDesktop())
		})

		Context("when the app has a window", func() {
			It("centers the window and covers the rest of the display", func() {
				Expect(eng.StartSession(ctx, "Notes", domain.Timed(15))).To(Succeed())

				st := status()
				Expect(st.State).To(Equal(domain.StateRunning))
				Expect(st.Regions).To(Equal(domain.CoverageRegionCount))

				// Computed opening {432,191,1056,802}, widened by the pad margin
				Expect(st.Session.Opening).To(Equal(domain.Rect{X: 428, Y: 187, W: 1064, H: 810}))
				Expect(desk.WindowBounds("Notes")).To(Equal(&st.Session.Opening))

				regions := desk.LiveRegions()
				Expect(regions).To(HaveLen(domain.CoverageRegionCount))
				Expect(coveredExactly(domain.Rect{W: 1920, H: 1080}, st.Session.Opening, regions)).To(BeTrue())
			})

			It("hides the menu bar for the session and restores it after", func() {
				Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())
				Expect(desk.Preference(menuBarKey)).To(Equal(domain.PrefTrue))

				Expect(eng.EndSession(ctx, domain.EndManual)).To(Succeed())
				expectEnded(domain.EndManual)
				Expect(desk.Preference(menuBarKey)).To(Equal(domain.PrefFalse))
			})

			It("puts the exit hint on the bottom region only", func() {
				Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())

				for _, r := range desk.LiveRegions() {
					if r.Role == domain.RegionBottom {
						Expect(r.Label).To(ContainSubstring("applock end"))
					} else {
						Expect(r.Label).To(BeEmpty())
					}
				}
			})
		})

		Context("when the app has no window", func() {
			It("fails with no-windows and changes nothing", func() {
				desk.CloseWindows("Notes")

				err := eng.StartSession(ctx, "Notes", domain.Indefinite)
				Expect(err).To(MatchError(domain.ErrNoWindows))
				Expect(domain.ErrorCode(err)).To(Equal("no-windows"))

				Expect(status().State).To(Equal(domain.StateIdle))
				Expect(desk.LiveRegions()).To(BeEmpty())
				Expect(desk.Preference(menuBarKey)).To(Equal(domain.PrefUnknown), "never written")
			})
		})

		Context("when a session is already running", func() {
			It("rejects the second start", func() {
				Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())
				Expect(eng.StartSession(ctx, "Mail", domain.Indefinite)).To(MatchError(domain.ErrSessionActive))
				Expect(status().Session.App).To(Equal("Notes"))
			})
		})
	})

	Describe("coverage geometry", func() {
		for _, d := range fixtures.Displays {
			display := d
			It("leaves no gap on "+display.Name, func() {
				startEngine(display.Desktop("Notes"))
				Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())

				st := status()
				Expect(st.Session.Opening.Within(display.Full)).To(BeTrue())
				Expect(coveredExactly(display.Full, st.Session.Opening, desk.LiveRegions())).To(BeTrue())
			})
		}
	})

	Describe("ending conditions", func() {
		BeforeEach(func() {
			startEngine(fixtures.DefaultDesktop())
		})

		It("ends a timed session when the time is up", func() {
			Expect(eng.StartSession(ctx, "Notes", domain.Timed(15))).To(Succeed())

			clock.Advance(15 * time.Minute)
			expectEnded(domain.EndTimer)

			reason, ok := eng.LastEndReason(ctx)
			Expect(ok).To(BeTrue())
			Expect(reason).To(Equal(domain.EndTimer))

			_, ok = eng.LastEndReason(ctx)
			Expect(ok).To(BeFalse(), "the reason is reported once")
		})

		It("ends when the app closes its last window", func() {
			Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())

			desk.CloseWindows("Notes")
			clock.Advance(600 * time.Millisecond)
			expectEnded(domain.EndAppClosed)
		})

		It("ends when a coverage region disappears", func() {
			Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())

			Expect(desk.KillRegion(domain.RegionLeft)).To(Equal(1))
			clock.Advance(time.Second)
			expectEnded(domain.EndWatchdog)
			Expect(desk.Preference(menuBarKey)).To(Equal(domain.PrefFalse))
		})

		It("treats a second end as a no-op", func() {
			Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())

			Expect(eng.EndSession(ctx, domain.EndManual)).To(Succeed())
			Expect(eng.EndSession(ctx, domain.EndManual)).To(Succeed())
			expectEnded(domain.EndManual)
			Consistently(eng.Ended()).WithTimeout(50 * time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("emergency quit", func() {
		BeforeEach(func() {
			startEngine(fixtures.DefaultDesktop())
		})

		It("tears down a running session and stops the engine", func() {
			Expect(eng.StartSession(ctx, "Notes", domain.Indefinite)).To(Succeed())

			Expect(eng.EmergencyQuit(ctx)).To(Succeed())
			Eventually(eng.Done()).Should(BeClosed())
			Expect(desk.LiveRegions()).To(BeEmpty())
			Expect(desk.Preference(menuBarKey)).To(Equal(domain.PrefFalse))

			Expect(eng.EmergencyQuit(ctx)).To(Succeed(), "quitting twice is fine")
		})
	})
})
