package deliver

import "context"

// Deliverer ships one finished backup artifact to a chat-webhook
// endpoint, splitting it under the platform's file-size ceiling when
// needed.
type Deliverer interface {
	Deliver(ctx context.Context, artifactPath string) error
}
