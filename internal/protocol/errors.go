package protocol

import (
	"errors"

	"plantcourier.game/internal/sim/camera"
	"plantcourier.game/internal/sim/orders"
	"plantcourier.game/internal/sim/session"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Rule layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrUnknownOrder      = "E_UNKNOWN_ORDER"
	ErrInvalidTransition = "E_INVALID_TRANSITION"
	ErrOrderLimit        = "E_ORDER_LIMIT"
	ErrOverDelivery      = "E_OVER_DELIVERY"
	ErrNotAtLocation     = "E_NOT_AT_LOCATION"
	ErrInvalidZoom       = "E_INVALID_ZOOM"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrBadRequest:        {},
	ErrUnknownOrder:      {},
	ErrInvalidTransition: {},
	ErrOrderLimit:        {},
	ErrOverDelivery:      {},
	ErrNotAtLocation:     {},
	ErrInvalidZoom:       {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a simulation error to its wire code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, orders.ErrUnknownOrder):
		return ErrUnknownOrder
	case errors.Is(err, orders.ErrOrderLimitReached):
		return ErrOrderLimit
	case errors.Is(err, orders.ErrOverDelivery):
		return ErrOverDelivery
	case errors.Is(err, orders.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, session.ErrNotAtLocation):
		return ErrNotAtLocation
	case errors.Is(err, camera.ErrInvalidZoom):
		return ErrInvalidZoom
	default:
		return ErrBadRequest
	}
}
