package repository

import (
	"fmt"

	"github.com/iliyamo/cinema-booking-inventory/internal/model"
)

// fmtReferenced builds the error returned when a delete is refused because
// other records still point at the target.  Handlers translate it into an
// HTTP 409 response.
func fmtReferenced(kind string, id uint64, by string) error {
	return fmt.Errorf("%w: %s %d has %s", model.ErrReferenced, kind, id, by)
}
