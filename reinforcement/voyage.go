package reinforcement

const kmPerNauticalMile = 1.852

// Voyage is the sailing plan for a route at constant speed.
type Voyage struct {
	SpeedKnots float64 `json:"speedKnots"`
	DistanceNm float64 `json:"distanceNm"`
	// Hours is the time en route; zero for a route without legs.
	Hours float64 `json:"hours"`
	// FuelTons burns FuelCost tons per nautical mile.
	FuelTons float64 `json:"fuelTons"`
}

// Voyage plans the route at the configured ship speed.
func (p Params) Voyage(route Route) Voyage {
	nm := route.DistanceKm() / kmPerNauticalMile
	v := Voyage{
		SpeedKnots: p.ShipSpeed,
		DistanceNm: nm,
		FuelTons:   nm * p.FuelCost,
	}
	if p.ShipSpeed > 0 {
		v.Hours = nm / p.ShipSpeed
	}
	return v
}
