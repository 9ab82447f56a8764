// Package rawlog is the write-only audit sink for raw inbound payloads.
// Document-store persistence lives outside this repo; callers only depend on
// the Sink contract.
package rawlog

import "context"

type Sink interface {
	Store(ctx context.Context, publisherEmail string, body any) error
}

type NoOpSink struct{}

func (NoOpSink) Store(ctx context.Context, publisherEmail string, body any) error {
	return nil
}
