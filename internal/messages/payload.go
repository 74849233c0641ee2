package messages

// Payload is the validated, kind-specific body of a message. Exactly one
// implementation exists per payload shape, so a stored message can never
// carry both a location and attachments.
type Payload interface {
	Kind() Kind
	payload()
}

// TextPayload is a plain message; attachments are optional.
type TextPayload struct {
	Text        string
	Attachments []AttachmentInput
}

// MediaPayload backs image and audio messages.
type MediaPayload struct {
	MediaKind   Kind
	Caption     *string
	Attachments []AttachmentInput
}

type LocationPayload struct {
	Location Location
}

// SystemPayload is produced by the service itself (notices), never rejected.
type SystemPayload struct {
	Text *string
}

func (TextPayload) Kind() Kind { return KindText }
func (p MediaPayload) Kind() Kind { return p.MediaKind }
func (LocationPayload) Kind() Kind { return KindLocation }
func (SystemPayload) Kind() Kind { return KindSystem }
func (TextPayload) payload() {}
func (MediaPayload) payload() {}
func (LocationPayload) payload() {}
func (SystemPayload) payload() {}

// PayloadAttachments returns the attachments carried by p, if its shape has any.
func PayloadAttachments(p Payload) []AttachmentInput {
	switch v := p.(type) {
	case TextPayload:
		return v.Attachments
	case MediaPayload:
		return v.Attachments
	}
	return nil
}
