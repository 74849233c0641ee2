package uploads

import (
	"context"
	"strings"

	"github.com/kgellert/hodatay-groupchat/internal/messages"
)

// Resolver turns attachment descriptors sent by a client into the
// descriptors that get stored. It never uploads anything.
type Resolver interface {
	Resolve(ctx context.Context, in []messages.AttachmentInput) ([]messages.AttachmentInput, error)
}

// Passthrough keeps descriptors as sent, apart from whitespace.
type Passthrough struct{}

func (Passthrough) Resolve(_ context.Context, in []messages.AttachmentInput) ([]messages.AttachmentInput, error) {
	out := make([]messages.AttachmentInput, 0, len(in))
	for _, a := range in {
		out = append(out, normalize(a))
	}
	return out, nil
}

func normalize(a messages.AttachmentInput) messages.AttachmentInput {
	a.URL = strings.TrimSpace(a.URL)
	a.Mime = strings.ToLower(strings.TrimSpace(a.Mime))
	if a.Caption != nil {
		c := strings.TrimSpace(*a.Caption)
		if c == "" {
			a.Caption = nil
		} else {
			a.Caption = &c
		}
	}
	return a
}
