package conquest

// Standard 24-territory map: four clusters of six arranged around a central
// crossing. Every territory starts neutral with two defending troops.

const neutralTroops = 2

// StandardBoard returns a fresh copy of the standard board. Each call builds
// a new instance because territories are mutated during play.
func StandardBoard() *Board {
	b := &Board{Territories: make(map[string]*Territory, 24)}

	terr := func(id, name string, neighbors ...string) {
		b.Territories[id] = &Territory{
			ID:        id,
			Name:      name,
			Neighbors: neighbors,
			Troops:    neutralTroops,
		}
	}

	// Northern reach
	terr("frost", "Frosthold", "tund", "glac", "ridge")
	terr("tund", "Tundra March", "frost", "glac", "pine")
	terr("glac", "Glacier Pass", "frost", "tund", "ridge", "pine")
	terr("ridge", "Iron Ridge", "frost", "glac", "cross", "quarry")
	terr("pine", "Pinewood", "tund", "glac", "cross", "fen")
	terr("quarry", "Old Quarry", "ridge", "cross", "forge")

	// Eastern marches
	terr("fen", "Greyfen", "pine", "cross", "reed")
	terr("reed", "Reedlands", "fen", "delta", "salt")
	terr("delta", "Sunken Delta", "reed", "salt", "tide")
	terr("salt", "Salt Flats", "reed", "delta", "tide", "cross")
	terr("tide", "Tidewater", "delta", "salt", "haven")
	terr("haven", "Storm Haven", "tide", "dune", "cross")

	// Southern expanse
	terr("dune", "Dune Sea", "haven", "oasis", "canyon")
	terr("oasis", "Last Oasis", "dune", "canyon", "mesa")
	terr("canyon", "Red Canyon", "dune", "oasis", "mesa", "cross")
	terr("mesa", "High Mesa", "oasis", "canyon", "scrub")
	terr("scrub", "Scrubline", "mesa", "forge", "cross")
	terr("forge", "Forge Hills", "quarry", "scrub", "vale")

	// Western vales
	terr("vale", "Lowvale", "forge", "orchard", "mill")
	terr("orchard", "Orchard Run", "vale", "mill", "brook")
	terr("mill", "Millfield", "vale", "orchard", "brook", "cross")
	terr("brook", "Coldbrook", "orchard", "mill", "heath")
	terr("heath", "Heathland", "brook", "cross")

	// Central crossing touches all four clusters
	terr("cross", "The Crossing",
		"ridge", "pine", "quarry", "fen", "salt", "haven",
		"canyon", "scrub", "mill", "heath")

	return b
}
