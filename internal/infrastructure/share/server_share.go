// Package share provides the share surface available to the HTTP server.
package share

import (
	"context"
	"sync"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
)

// ServerShare has no native share sheet. Copying to the clipboard captures
// the text so the handler can return it to the client, which owns the real
// clipboard. Use one ServerShare per request.
type ServerShare struct {
	mu     sync.Mutex
	copied string
}

var _ ports.ShareCapability = (*ServerShare)(nil)

func NewServerShare() *ServerShare {
	return &ServerShare{}
}

func (s *ServerShare) NativeShare(ctx context.Context, payload domain.SharePayload) error {
	return domain.ErrShareUnsupported
}

func (s *ServerShare) CopyToClipboard(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.copied = text
	s.mu.Unlock()
	return nil
}

// Copied returns the last text handed to CopyToClipboard.
func (s *ServerShare) Copied() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copied
}
