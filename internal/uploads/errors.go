package uploads

import (
	"fmt"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
)

var (
	ErrContentTypeIsRequired = fmt.Errorf("%w: content_type is required", errs.ErrValidation)
	ErrInvalidContentType    = fmt.Errorf("%w: invalid content_type", errs.ErrValidation)
	ErrExtensionMismatch     = fmt.Errorf("%w: file extension does not match content type", errs.ErrValidation)
	ErrInvalidKey            = fmt.Errorf("%w: invalid key", errs.ErrValidation)
	ErrObjectNotFound        = fmt.Errorf("%w: attachment object not found", errs.ErrValidation)
)
