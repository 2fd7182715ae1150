package authority

import "errors"

// ErrAllocationDenied is returned when the resource authority cannot reserve
// capacity. Callers treat it as non-fatal and proceed resource-constrained.
var ErrAllocationDenied = errors.New("resource allocation denied")
