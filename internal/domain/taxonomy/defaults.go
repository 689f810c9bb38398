package taxonomy

// Default returns the built-in AEO taxonomy.  Each call returns a fresh copy.
func Default() *Taxonomy {
	return &Taxonomy{
		Divisions: []Division{
			{Name: "new england", Code: 1},
			{Name: "mid atlantic", Code: 2},
			{Name: "east north central", Code: 3},
			{Name: "west north central", Code: 4},
			{Name: "south atlantic", Code: 5},
			{Name: "east south central", Code: 6},
			{Name: "west south central", Code: 7},
			{Name: "mountain", Code: 8},
			{Name: "pacific", Code: 9},
		},
		Residential: ClassVocabulary{
			BuildingTypes: []string{"single family home", "multi family home", "mobile home"},
			Fuels:         []string{"electricity (on site)", "electricity", "natural gas", "distillate", "other fuel"},
			EndUses: []string{
				"total square footage", "new homes", "total homes",
				"heating", "secondary heating", "cooling", "fans and pumps",
				"ceiling fan", "lighting", "water heating", "refrigeration",
				"cooking", "drying", "TVs", "computers", "other",
			},
		},
		Commercial: ClassVocabulary{
			BuildingTypes: []string{
				"assembly", "education", "food sales", "food service",
				"health care", "lodging", "large office", "small office",
				"mercantile/service", "warehouse", "other", "unspecified",
			},
			Fuels: []string{"electricity", "natural gas", "distillate", "other fuel"},
			EndUses: []string{
				"heating", "cooling", "water heating", "ventilation", "cooking",
				"lighting", "refrigeration", "PCs", "non-PC office equipment",
				"other", "MELs", "unspecified",
			},
		},
		Regions: map[Scheme][]string{
			SchemeAIA: {"AIA_CZ1", "AIA_CZ2", "AIA_CZ3", "AIA_CZ4", "AIA_CZ5"},
			SchemeEMM: {
				"TRE", "FRCC", "MISW", "MISC", "MISE", "MISS",
				"ISNE", "NYCW", "NYUP", "PJME", "PJMW", "PJMC",
				"PJMD", "SRCA", "SRSE", "SRCE", "SPPS", "SPPC",
				"SPPN", "SRSG", "CANO", "CASO", "NWPP", "RMRG", "BASN",
			},
			SchemeState: {
				"AK", "AL", "AZ", "AR", "CA", "CO", "CT", "DE", "DC", "FL", "GA", "HI",
				"ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN",
				"MS", "MO", "MT", "NE", "NV", "NH", "NJ", "NM", "NY", "NC", "ND",
				"OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT", "VT",
				"VA", "WA", "WV", "WI", "WY",
			},
		},
		StockKeys: map[string]string{
			"total homes":          StockHomes,
			"new homes":            StockHomes,
			"total square footage": StockFloorArea,
			"new square footage":   StockFloorArea,
		},
		EULP: map[string][]EULPGroup{
			"electricity": {
				{Name: "heating", Members: []string{"heating", "secondary heating"}},
				{Name: "cooling", Members: []string{"cooling"}},
				{Name: "water heating", Members: []string{"water heating"}},
				{Name: "cooking", Members: []string{"cooking"}},
				{Name: "drying", Members: []string{"drying"}},
				{Name: "clothes washing", Members: []string{"other-clothes washing"}},
				{Name: "dishwasher", Members: []string{"other-dishwasher"}},
				{Name: "lighting", Members: []string{"lighting"}},
				{Name: "refrigeration", Members: []string{"refrigeration", "other-freezers"}},
				{Name: "ceiling fan", Members: []string{"ceiling fan"}},
				{Name: "misc", Members: []string{"TVs", "computers", "MELs", "PCs", "non-PC office equipment", "unspecified", "other"}},
				{Name: "pool heaters", Members: []string{"other-pool heaters"}},
				{Name: "pool pumps", Members: []string{"other-pool pumps"}},
				{Name: "portable electric spas", Members: []string{"other-spas"}},
				{Name: "fans and pumps", Members: []string{"ventilation", "fans and pumps"}},
			},
			"natural gas": {
				{Name: "heating", Members: []string{"heating", "secondary heating"}},
				{Name: "cooling", Members: []string{"cooling"}},
				{Name: "water heating", Members: []string{"water heating"}},
				{Name: "cooking", Members: []string{"cooking"}},
				{Name: "drying", Members: []string{"drying"}},
				{Name: "misc", Members: []string{"other", "unspecified"}},
				{Name: "lighting", Members: []string{"lighting"}},
				{Name: "pool heaters", Members: []string{"other-pool heaters"}},
				{Name: "portable electric spas", Members: []string{"other-spas"}},
			},
			"distillate": {
				{Name: "heating", Members: []string{"heating", "secondary heating"}},
				{Name: "water heating", Members: []string{"water heating"}},
				{Name: "misc", Members: []string{"other", "unspecified"}},
			},
			"other fuel": {
				{Name: "heating", Members: []string{"heating", "secondary heating"}},
				{Name: "water heating", Members: []string{"water heating"}},
				{Name: "cooking", Members: []string{"cooking"}},
				{Name: "drying", Members: []string{"drying"}},
				{Name: "misc", Members: []string{"unspecified"}},
			},
		},
		EULPOtherTech: []string{
			"dishwasher", "clothes washing", "freezers",
			"pool heaters", "pool pumps", "portable electric spas",
		},
	}
}

//Personal.AI order the ending
