package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/notify-router/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var (
		registry *circuitbreaker.Registry
		clock    *fakeClock
	)

	BeforeEach(func() {
		clock = newFakeClock()
		registry = circuitbreaker.NewRegistry(5, 30*time.Second, circuitbreaker.WithClock(clock.Now))
	})

	Describe("Get", func() {
		It("should create a new breaker for an unknown channel", func() {
			cb := registry.Get("email-primary")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Channel()).To(Equal("email-primary"))
		})

		It("should return the same breaker for the same channel", func() {
			cb1 := registry.Get("email-primary")
			cb2 := registry.Get("email-primary")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different channels", func() {
			cb1 := registry.Get("email-primary")
			cb2 := registry.Get("sms-primary")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should use registry settings for new breakers", func() {
			registry = circuitbreaker.NewRegistry(2, 50*time.Millisecond, circuitbreaker.WithClock(clock.Now))
			cb := registry.Get("email-primary")

			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			clock.Advance(60 * time.Millisecond)
			Expect(cb.Allow()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Describe("Lookup", func() {
		It("should not create breakers", func() {
			_, ok := registry.Lookup("email-primary")
			Expect(ok).To(BeFalse())
			Expect(registry.Channels()).To(BeEmpty())

			registry.Get("email-primary")
			cb, ok := registry.Lookup("email-primary")
			Expect(ok).To(BeTrue())
			Expect(cb).NotTo(BeNil())
		})
	})

	Describe("Reset", func() {
		It("should close the named breaker and keep the same instance", func() {
			cb := registry.Get("email-primary")
			for i := 0; i < 5; i++ {
				cb.RecordFailure()
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			Expect(registry.Reset("email-primary")).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(registry.Get("email-primary")).To(BeIdenticalTo(cb))
		})

		It("should report unknown channels", func() {
			Expect(registry.Reset("nope")).To(BeFalse())
		})

		It("should close every breaker with ResetAll", func() {
			a := registry.Get("a")
			b := registry.Get("b")
			for i := 0; i < 5; i++ {
				a.RecordFailure()
				b.RecordFailure()
			}

			registry.ResetAll()
			Expect(a.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(b.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(registry.Channels()).To(Equal([]string{"a", "b"}))
		})
	})

	Describe("Concurrent access", func() {
		It("should handle concurrent Get calls safely", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					for j := 0; j < 10; j++ {
						Expect(registry.Get("email-primary")).NotTo(BeNil())
					}
				}()
			}
			wg.Wait()

			Expect(registry.Stats()).To(HaveLen(1))
		})

		It("should handle concurrent operations on same breaker", func() {
			const goroutines = 50

			var wg sync.WaitGroup
			wg.Add(goroutines * 2)

			cb := registry.Get("email-primary")
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.RecordFailure()
				}()
				go func() {
					defer wg.Done()
					cb.RecordSuccess()
				}()
			}
			wg.Wait()

			Expect(cb.State()).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
		})
	})

	Describe("Stats", func() {
		It("should return state and failures of all breakers", func() {
			registry.Get("email-primary").RecordFailure()
			sms := registry.Get("sms-primary")
			for i := 0; i < 5; i++ {
				sms.RecordFailure()
			}

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["email-primary"]).To(Equal(circuitbreaker.Stat{State: circuitbreaker.StateClosed, Failures: 1}))
			Expect(stats["sms-primary"]).To(Equal(circuitbreaker.Stat{State: circuitbreaker.StateOpen, Failures: 5}))
		})

		It("should apply pending HALF-OPEN moves", func() {
			sms := registry.Get("sms-primary")
			for i := 0; i < 5; i++ {
				sms.RecordFailure()
			}
			clock.Advance(time.Minute)

			Expect(registry.Stats()["sms-primary"].State).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})
})
