package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/notify-router/internal/circuitbreaker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var _ = Describe("CircuitBreaker", func() {
	var (
		cb          *circuitbreaker.CircuitBreaker
		clock       *fakeClock
		transitions []circuitbreaker.Transition
	)

	trip := func() {
		cb.RecordFailure()
		cb.RecordFailure()
		cb.RecordFailure()
	}

	BeforeEach(func() {
		clock = newFakeClock()
		transitions = nil
		cb = circuitbreaker.NewCircuitBreaker("email", 3, 30*time.Second,
			circuitbreaker.WithClock(clock.Now),
			circuitbreaker.WithListener(func(t circuitbreaker.Transition) {
				transitions = append(transitions, t)
			}),
		)
	})

	Describe("NewCircuitBreaker", func() {
		It("should create a circuit breaker in closed state", func() {
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Failures()).To(Equal(0))
			Expect(cb.Channel()).To(Equal("email"))
		})

		It("should fall back to defaults for non-positive settings", func() {
			cb = circuitbreaker.NewCircuitBreaker("sms", 0, 0, circuitbreaker.WithClock(clock.Now))
			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			clock.Advance(circuitbreaker.DefaultTimeout - time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			clock.Advance(time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Describe("State transitions", func() {
		Context("when in CLOSED state", func() {
			It("should allow requests", func() {
				Expect(cb.Allow()).To(BeTrue())
				Expect(cb.Allow()).To(BeTrue())
			})

			It("should remain closed after failures below threshold", func() {
				cb.RecordFailure()
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.Allow()).To(BeTrue())
				Expect(cb.Failures()).To(Equal(2))
			})

			It("should transition to OPEN after reaching failure threshold", func() {
				trip()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
				Expect(cb.Allow()).To(BeFalse())
			})
		})

		Context("when in OPEN state", func() {
			BeforeEach(func() {
				trip()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should block requests", func() {
				Expect(cb.Allow()).To(BeFalse())
			})

			It("should remain OPEN before reset timeout expires", func() {
				clock.Advance(29 * time.Second)
				Expect(cb.Allow()).To(BeFalse())
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should observe HALF-OPEN on read once the timeout has elapsed", func() {
				clock.Advance(31 * time.Second)
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should move to HALF-OPEN exactly at the timeout", func() {
				clock.Advance(30 * time.Second)
				Expect(cb.Allow()).To(BeTrue())
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should keep the failure count across the HALF-OPEN move", func() {
				clock.Advance(31 * time.Second)
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
				Expect(cb.Failures()).To(Equal(3))
			})

			It("should not re-fire the HALF-OPEN move on later reads", func() {
				clock.Advance(31 * time.Second)
				cb.State()
				cb.State()
				clock.Advance(time.Minute)
				cb.State()

				halfOpen := 0
				for _, t := range transitions {
					if t.To == circuitbreaker.StateHalfOpen {
						halfOpen++
					}
				}
				Expect(halfOpen).To(Equal(1))
			})

			It("should ignore a success recorded while OPEN", func() {
				cb.RecordSuccess()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
				Expect(cb.Failures()).To(Equal(3))
			})
		})

		Context("when in HALF-OPEN state", func() {
			BeforeEach(func() {
				trip()
				clock.Advance(31 * time.Second)
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should allow the probe request", func() {
				Expect(cb.Allow()).To(BeTrue())
			})

			It("should admit only one probe at a time", func() {
				Expect(cb.Allow()).To(BeTrue())
				Expect(cb.Allow()).To(BeFalse())
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should transition to CLOSED on success and clear failures", func() {
				Expect(cb.Allow()).To(BeTrue())
				cb.RecordSuccess()
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
				Expect(cb.Failures()).To(Equal(0))
				Expect(cb.Allow()).To(BeTrue())
			})

			It("should transition back to OPEN on failure", func() {
				Expect(cb.Allow()).To(BeTrue())
				cb.RecordFailure()
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
				Expect(cb.Allow()).To(BeFalse())
				Expect(cb.Failures()).To(Equal(4))
			})

			It("should restart the timeout after a failed probe", func() {
				cb.Allow()
				cb.RecordFailure()
				clock.Advance(29 * time.Second)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
				clock.Advance(2 * time.Second)
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})
		})
	})

	Describe("the documented scenario", func() {
		It("opens, half-opens after 31s and re-opens on a failed probe", func() {
			trip()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.Allow()).To(BeFalse())

			clock.Advance(31 * time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))

			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("RecordSuccess", func() {
		It("should reset failure count", func() {
			cb.RecordFailure()
			cb.RecordFailure()
			cb.RecordSuccess()
			Expect(cb.Failures()).To(Equal(0))

			// Should not open after one more failure
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Reset", func() {
		It("should close an OPEN breaker", func() {
			trip()
			cb.Reset()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Failures()).To(Equal(0))
		})

		It("should close a HALF-OPEN breaker and free the probe slot", func() {
			trip()
			clock.Advance(31 * time.Second)
			Expect(cb.Allow()).To(BeTrue())

			cb.Reset()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Allow()).To(BeTrue())
			Expect(cb.Allow()).To(BeTrue())
		})

		It("should clear failures on a CLOSED breaker", func() {
			cb.RecordFailure()
			cb.Reset()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Failures()).To(Equal(0))
		})
	})

	Describe("Listener", func() {
		It("should report every transition with the failure count", func() {
			trip()
			clock.Advance(31 * time.Second)
			cb.Allow()
			cb.RecordSuccess()

			Expect(transitions).To(HaveLen(3))
			Expect(transitions[0].Channel).To(Equal("email"))
			Expect(transitions[0].From).To(Equal(circuitbreaker.StateClosed))
			Expect(transitions[0].To).To(Equal(circuitbreaker.StateOpen))
			Expect(transitions[0].Failures).To(Equal(3))
			Expect(transitions[0].At).To(Equal(clock.Now().Add(-31 * time.Second)))
			Expect(transitions[1].From).To(Equal(circuitbreaker.StateOpen))
			Expect(transitions[1].To).To(Equal(circuitbreaker.StateHalfOpen))
			Expect(transitions[2].To).To(Equal(circuitbreaker.StateClosed))
			Expect(transitions[2].Failures).To(Equal(0))
		})

		It("should stay silent when no state changes", func() {
			cb.RecordFailure()
			cb.RecordSuccess()
			cb.Reset()
			Expect(transitions).To(BeEmpty())
		})
	})

	Describe("Concurrent use", func() {
		It("should open exactly once under concurrent failures", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					cb.RecordFailure()
				}()
			}
			wg.Wait()

			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			Expect(cb.Failures()).To(Equal(50))
		})

		It("should hand the HALF-OPEN probe to a single caller", func() {
			trip()
			clock.Advance(31 * time.Second)

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				allowed int
			)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if cb.Allow() {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Expect(allowed).To(Equal(1))
		})
	})

	Describe("State.String", func() {
		It("should return correct string representation", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("CLOSED"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("OPEN"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("HALF-OPEN"))
			Expect(circuitbreaker.State(42).String()).To(Equal("UNKNOWN"))
		})
	})
})
