package state

import "time"

// Infinity is the distance sentinel for an unreachable destination.
// Advertisements carrying it (or beyond) never produce a route.
const Infinity = uint8(16)

var (
	AdvertiseInterval = time.Second * 5
	GcDelay           = time.Second * 1
	RouteExpiryTime   = 5 * AdvertiseInterval

	// NeighbourLivenessTTL bounds how long a neighbour endpoint is
	// considered active after its last frame.
	NeighbourLivenessTTL = 3 * AdvertiseInterval

	SafeMTU = 1200

	DefaultCtlPath = "rayon.sock"
)
