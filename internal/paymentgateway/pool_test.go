package paymentgateway_test

import (
	"context"
	"sync"

	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pool", func() {
	It("should process every submitted job before Wait returns", func() {
		var (
			mu        sync.Mutex
			processed []string
		)
		pool := paymentgateway.NewPool(paymentgateway.PoolConfig{MaxWorkers: 3, JobQueueSize: 2},
			func(ctx context.Context, job paymentgateway.PollJob) {
				mu.Lock()
				defer mu.Unlock()
				processed = append(processed, job.OrderID)
			}, logger.Discard())
		defer pool.Shutdown()

		for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
			Expect(pool.Submit(context.Background(), paymentgateway.PollJob{OrderID: id})).To(Succeed())
		}
		pool.Wait()

		mu.Lock()
		defer mu.Unlock()
		Expect(processed).To(ConsistOf("a", "b", "c", "d", "e", "f"))
	})

	It("should refuse jobs after shutdown", func() {
		pool := paymentgateway.NewPool(paymentgateway.PoolConfig{MaxWorkers: 1, JobQueueSize: 1},
			func(ctx context.Context, job paymentgateway.PollJob) {}, logger.Discard())
		pool.Shutdown()

		err := pool.Submit(context.Background(), paymentgateway.PollJob{OrderID: "a"})
		Expect(err).To(MatchError(paymentgateway.ErrPoolClosed))
	})
})
