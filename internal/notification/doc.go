// Package notification defines the types shared by the router and the channel
// adapters: the dispatch request, the dispatch result, the adapter contract,
// and the sentinel errors a result can carry.
//
// An Adapter performs the actual delivery for one transport kind:
//
//	type Adapter interface {
//	    Supports(t ChannelType) bool
//	    Send(ctx context.Context, req Request) (Result, error)
//	}
//
// A non-nil error (or a panic) from Send is a fault. Callers treat faults the
// same way as a Result with Success set to false.
package notification
