package messages

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinAccuracy = 0
	MaxAccuracy = 5000

	// MaxTextLength matches the max tag on SendRequest.Text and EditMessageRequest.Text.
	MaxTextLength = 4000

	// MaxDimension matches the max tag on AttachmentInput.Width and Height.
	MaxDimension = 100000

	// MaxMarkReadIDs matches the max tag on MarkReadRequest.MessageIDs.
	MaxMarkReadIDs = MaxPageLimit
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CheckRequest runs the struct tag checks of a request body.
func CheckRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		fields = append(fields, fmt.Sprintf("%s failed on %s", field, fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, "; "))
}

// Validate checks req against the rules of its declared kind and returns the
// normalized payload to store.
func Validate(req SendRequest) (Payload, error) {
	switch req.Kind {
	case KindText:
		text := trimmed(req.Text)
		if text == "" && len(req.Attachments) == 0 {
			return nil, ErrTextOrAttachmentsIsRequired
		}
		return TextPayload{Text: text, Attachments: req.Attachments}, nil

	case KindImage:
		if len(req.Attachments) == 0 {
			return nil, ErrImageAttachmentRequired
		}
		if !mimesHavePrefix(req.Attachments, "image/") {
			return nil, ErrInvalidImageMime
		}
		return MediaPayload{MediaKind: KindImage, Caption: trimmedPtr(req.Text), Attachments: req.Attachments}, nil

	case KindAudio:
		if len(req.Attachments) == 0 {
			return nil, ErrAudioAttachmentRequired
		}
		if !mimesHavePrefix(req.Attachments, "audio/") {
			return nil, ErrInvalidAudioMime
		}
		return MediaPayload{MediaKind: KindAudio, Caption: trimmedPtr(req.Text), Attachments: req.Attachments}, nil

	case KindLocation:
		loc, err := ValidateLocation(req.Location)
		if err != nil {
			return nil, err
		}
		return LocationPayload{Location: loc}, nil

	case KindSystem:
		return SystemPayload{Text: trimmedPtr(req.Text)}, nil
	}

	return nil, ErrUnsupportedKind
}

// ValidateLocation rejects out of range coordinates and clamps accuracy into
// [MinAccuracy, MaxAccuracy].
func ValidateLocation(loc *Location) (Location, error) {
	if loc == nil {
		return Location{}, ErrLocationRequired
	}
	if !(loc.Lat >= -90 && loc.Lat <= 90) || !(loc.Lng >= -180 && loc.Lng <= 180) {
		return Location{}, ErrInvalidCoordinates
	}

	out := Location{Lat: loc.Lat, Lng: loc.Lng}
	if loc.Accuracy != nil {
		acc := min(max(*loc.Accuracy, MinAccuracy), MaxAccuracy)
		out.Accuracy = &acc
	}
	return out, nil
}

// mimesHavePrefix reports whether every attachment with a mime starts with
// prefix. Attachments without a mime are not checked.
func mimesHavePrefix(atts []AttachmentInput, prefix string) bool {
	for _, a := range atts {
		if a.Mime != "" && !strings.HasPrefix(a.Mime, prefix) {
			return false
		}
	}
	return true
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func trimmedPtr(s *string) *string {
	t := trimmed(s)
	if t == "" {
		return nil
	}
	return &t
}
