// Package channel abstracts the third-party chat/webhook provider the
// scheduler delivers messages through. The core only depends on the Sender
// contract; failures are reported as errors and recorded by the caller.
package channel

import "context"

// Sender delivers one message to one recipient on the external provider.
// projectID selects the per-project access credential.
type Sender interface {
	Send(ctx context.Context, projectID uint, recipientExternalID, content string) error
}
